package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidOffset is returned when a reminder offset string is not one of the known values.
var ErrInvalidOffset = errors.New("invalid reminder offset")

// ReminderOffset is how long before an event's start its reminders fire.
type ReminderOffset string

const (
	OffsetNone      ReminderOffset = "none"
	Offset40Minutes ReminderOffset = "40m"
	Offset2Hours    ReminderOffset = "2h"
	Offset24Hours   ReminderOffset = "24h"
)

// ParseReminderOffset accepts the wire values "40m", "2h", "24h", and "" or "none".
func ParseReminderOffset(s string) (ReminderOffset, error) {
	switch ReminderOffset(strings.ToLower(strings.TrimSpace(s))) {
	case "", OffsetNone:
		return OffsetNone, nil
	case Offset40Minutes:
		return Offset40Minutes, nil
	case Offset2Hours:
		return Offset2Hours, nil
	case Offset24Hours:
		return Offset24Hours, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
}

// Duration returns the lead time for the offset. ok is false for OffsetNone.
func (o ReminderOffset) Duration() (d time.Duration, ok bool) {
	switch o {
	case Offset40Minutes:
		return 40 * time.Minute, true
	case Offset2Hours:
		return 2 * time.Hour, true
	case Offset24Hours:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

type CalendarEvent struct {
	ID                  string         `json:"id"`
	OrganizationID      string         `json:"organization_id"`
	ProjectID           *string        `json:"project_id"`
	Subject             string         `json:"subject"`
	Description         string         `json:"description"`
	Start               time.Time      `json:"start"`
	End                 *time.Time     `json:"end"`
	ReminderOffset      ReminderOffset `json:"reminder_offset"`
	RemindClient        bool           `json:"remind_client"`
	RemindProjectOwners bool           `json:"remind_project_owners"`
	AssignedUserIDs     []string       `json:"assigned_user_ids"`
	IsDeleted           bool           `json:"is_deleted"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// HasProject reports whether the event is attached to a project.
func (e *CalendarEvent) HasProject() bool {
	return e.ProjectID != nil && *e.ProjectID != ""
}

// EventContext is an event together with the records its reminders draw contact data from.
type EventContext struct {
	Event        CalendarEvent
	Project      *Project
	Organization Organization
}
