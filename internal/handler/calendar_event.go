package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/restoregeek/restoregeek/internal/auth"
	"github.com/restoregeek/restoregeek/internal/model"
	"github.com/restoregeek/restoregeek/internal/reminder"
	"github.com/restoregeek/restoregeek/internal/store"
)

type CalendarEventHandler struct {
	eventStore     *store.EventStore
	reminderStore  *store.ReminderStore
	directoryStore *store.DirectoryStore
	lifecycle      *reminder.Lifecycle
	logger         *slog.Logger
}

func NewCalendarEventHandler(es *store.EventStore, rs *store.ReminderStore, ds *store.DirectoryStore, lc *reminder.Lifecycle, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{
		eventStore:     es,
		reminderStore:  rs,
		directoryStore: ds,
		lifecycle:      lc,
		logger:         logger.With("component", "calendar_event_handler"),
	}
}

type eventRequest struct {
	Subject             string   `json:"subject"`
	Description         string   `json:"description"`
	Start               string   `json:"start"`
	End                 *string  `json:"end"`
	ReminderOffset      string   `json:"reminder_offset"`
	RemindClient        bool     `json:"remind_client"`
	RemindProjectOwners bool     `json:"remind_project_owners"`
	AssignedUserIDs     []string `json:"assigned_user_ids"`
	ProjectID           *string  `json:"project_id"`
}

type eventResponse struct {
	*model.CalendarEvent
	Reminders []model.Reminder `json:"reminders"`
}

func withReminders(e *model.CalendarEvent, reminders []model.Reminder) eventResponse {
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	return eventResponse{CalendarEvent: e, Reminders: reminders}
}

// parseAndValidate decodes the body into an event owned by orgID. On failure
// it has already written the response.
func (h *CalendarEventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request, orgID string) (model.CalendarEvent, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return model.CalendarEvent{}, false
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return model.CalendarEvent{}, false
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 format")
		return model.CalendarEvent{}, false
	}
	start = start.UTC()

	var end *time.Time
	if req.End != nil && *req.End != "" {
		t, err := time.Parse(time.RFC3339, *req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339 format")
			return model.CalendarEvent{}, false
		}
		if t.Before(start) {
			writeError(w, http.StatusBadRequest, "end must not be before start")
			return model.CalendarEvent{}, false
		}
		t = t.UTC()
		end = &t
	}

	offset, err := model.ParseReminderOffset(req.ReminderOffset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reminder_offset must be one of 40m, 2h, 24h or none")
		return model.CalendarEvent{}, false
	}

	var projectID *string
	if req.ProjectID != nil && strings.TrimSpace(*req.ProjectID) != "" {
		id := strings.TrimSpace(*req.ProjectID)
		project, err := h.directoryStore.GetProject(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to check project", "project", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check project")
			return model.CalendarEvent{}, false
		}
		if project == nil || project.OrganizationID != orgID {
			writeError(w, http.StatusBadRequest, "project not found")
			return model.CalendarEvent{}, false
		}
		projectID = &id
	}

	for _, userID := range req.AssignedUserIDs {
		user, err := h.directoryStore.GetUser(r.Context(), userID)
		if err != nil {
			h.logger.Error("failed to check user", "user", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check assigned user")
			return model.CalendarEvent{}, false
		}
		if user == nil || user.OrganizationID != orgID {
			writeError(w, http.StatusBadRequest, "assigned user not found: "+userID)
			return model.CalendarEvent{}, false
		}
	}

	return model.CalendarEvent{
		OrganizationID:      orgID,
		ProjectID:           projectID,
		Subject:             req.Subject,
		Description:         req.Description,
		Start:               start,
		End:                 end,
		ReminderOffset:      offset,
		RemindClient:        req.RemindClient,
		RemindProjectOwners: req.RemindProjectOwners,
		AssignedUserIDs:     req.AssignedUserIDs,
	}, true
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrganizationID(r.Context())
	e, ok := h.parseAndValidate(w, r, orgID)
	if !ok {
		return
	}

	event, err := h.eventStore.Create(r.Context(), e)
	if err != nil {
		h.logger.Error("failed to create calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	reminders, err := h.lifecycle.OnEventCreated(r.Context(), *event)
	if err != nil {
		h.logger.Error("failed to plan reminders", "event", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "event created but reminders could not be scheduled")
		return
	}

	writeJSON(w, http.StatusCreated, withReminders(event, reminders))
}

func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrganizationID(r.Context())

	var projectID *string
	if p := r.URL.Query().Get("project_id"); p != "" {
		projectID = &p
	}

	events, err := h.eventStore.List(r.Context(), orgID, projectID)
	if err != nil {
		h.logger.Error("failed to list calendar events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Update replaces every field of the event and recomputes its reminders.
func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	e, ok := h.parseAndValidate(w, r, existing.OrganizationID)
	if !ok {
		return
	}
	e.ID = existing.ID

	updated, err := h.eventStore.Update(r.Context(), e)
	if err != nil {
		h.logger.Error("failed to update calendar event", "event", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	reminders, err := h.lifecycle.OnEventUpdated(r.Context(), *existing, *updated)
	if err != nil {
		h.logger.Error("failed to replan reminders", "event", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "event updated but reminders could not be rescheduled")
		return
	}

	writeJSON(w, http.StatusOK, withReminders(updated, reminders))
}

// Delete soft-deletes the event and removes its reminders.
func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.eventStore.SoftDelete(r.Context(), existing.ID); err != nil {
		h.logger.Error("failed to delete calendar event", "event", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	if err := h.lifecycle.OnEventDeleted(r.Context(), existing.OrganizationID, existing.ID); err != nil {
		h.logger.Error("failed to delete reminders", "event", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "event deleted but reminders could not be removed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarEventHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	reminders, err := h.reminderStore.ListByEvent(r.Context(), existing.ID)
	if err != nil {
		h.logger.Error("failed to list reminders", "event", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}

	writeJSON(w, http.StatusOK, reminders)
}

// lookup loads the event named by the path for the caller's organization.
func (h *CalendarEventHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.CalendarEvent, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	event, err := h.eventStore.GetForOrganization(r.Context(), auth.OrganizationID(r.Context()), id)
	if err != nil {
		h.logger.Error("failed to get calendar event", "event", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}
