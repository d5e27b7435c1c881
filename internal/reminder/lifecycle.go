package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/restoregeek/restoregeek/internal/model"
	"github.com/restoregeek/restoregeek/internal/websocket"
)

// PlanStore is the part of the reminder store the lifecycle handler mutates.
type PlanStore interface {
	ReplacePlan(ctx context.Context, eventID string, drafts []model.Draft) ([]model.Reminder, error)
	DeleteAllForEvent(ctx context.Context, eventID string) (int64, error)
}

// Broadcaster publishes live-feed messages. *websocket.Hub satisfies it.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Lifecycle keeps each event's reminder set in step with the event. It never
// sends notifications.
type Lifecycle struct {
	store  PlanStore
	feed   Broadcaster
	logger *slog.Logger
}

// NewLifecycle creates a Lifecycle. feed may be nil.
func NewLifecycle(store PlanStore, feed Broadcaster, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		feed:   feed,
		logger: logger.With("component", "reminder_lifecycle"),
	}
}

// OnEventCreated stores the plan for a new event.
func (l *Lifecycle) OnEventCreated(ctx context.Context, e model.CalendarEvent) ([]model.Reminder, error) {
	return l.replace(ctx, e)
}

// OnEventUpdated replaces the event's reminders with a plan computed from the
// new state. The old state is only used for logging.
func (l *Lifecycle) OnEventUpdated(ctx context.Context, old, updated model.CalendarEvent) ([]model.Reminder, error) {
	if !old.Start.Equal(updated.Start) || old.ReminderOffset != updated.ReminderOffset {
		l.logger.Debug("reminder timing changed",
			"event", updated.ID,
			"old_start", old.Start, "new_start", updated.Start,
			"old_offset", old.ReminderOffset, "new_offset", updated.ReminderOffset,
		)
	}
	return l.replace(ctx, updated)
}

// OnEventDeleted removes every reminder of the event.
func (l *Lifecycle) OnEventDeleted(ctx context.Context, organizationID, eventID string) error {
	n, err := l.store.DeleteAllForEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("delete reminders for event %s: %w", eventID, err)
	}
	l.logger.Info("reminders deleted", "event", eventID, "count", n)
	l.broadcast(websocket.NewMessage("reminder_plan", "deleted", eventID, map[string]any{"count": n}).
		ForOrganization(organizationID))
	return nil
}

func (l *Lifecycle) replace(ctx context.Context, e model.CalendarEvent) ([]model.Reminder, error) {
	drafts := Plan(e)
	reminders, err := l.store.ReplacePlan(ctx, e.ID, drafts)
	if err != nil {
		return nil, fmt.Errorf("replace reminder plan for event %s: %w", e.ID, err)
	}
	l.logger.Info("reminder plan replaced", "event", e.ID, "count", len(reminders), "offset", e.ReminderOffset)
	l.broadcast(websocket.NewMessage("reminder_plan", "replaced", e.ID, map[string]any{"count": len(reminders)}).
		ForOrganization(e.OrganizationID))
	return reminders, nil
}

func (l *Lifecycle) broadcast(msg websocket.Message) {
	if l.feed != nil {
		l.feed.Broadcast(msg)
	}
}
