package reminder

import (
	"sort"

	"github.com/restoregeek/restoregeek/internal/model"
)

// Plan computes the complete reminder set an event should own. It performs no
// I/O and returns drafts ordered CLIENT, PROJECT_CREATOR, then assigned users
// by id.
//
// Client and project-creator reminders need a project to resolve contacts
// from, so they are omitted for events without one. A trigger time already
// in the past is kept; the next sweep delivers it late.
func Plan(e model.CalendarEvent) []model.Draft {
	if e.IsDeleted {
		return nil
	}
	lead, ok := e.ReminderOffset.Duration()
	if !ok {
		return nil
	}
	triggerAt := e.Start.UTC().Add(-lead)

	draft := func(t model.Target) model.Draft {
		return model.Draft{TriggerAt: triggerAt, Target: t, WantsSMS: true, WantsEmail: true}
	}

	var drafts []model.Draft
	if e.HasProject() {
		if e.RemindClient {
			drafts = append(drafts, draft(model.ClientTarget()))
		}
		if e.RemindProjectOwners {
			drafts = append(drafts, draft(model.ProjectCreatorTarget()))
		}
	}

	userIDs := make([]string, 0, len(e.AssignedUserIDs))
	seen := make(map[string]struct{}, len(e.AssignedUserIDs))
	for _, id := range e.AssignedUserIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	for _, id := range userIDs {
		drafts = append(drafts, draft(model.AssignedUserTarget(id)))
	}
	return drafts
}
