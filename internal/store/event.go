package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, rolling back if fn fails.
func withTx(ctx context.Context, db *database.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const eventColumns = `id, organization_id, project_id, subject, description, start_at, end_at,
	reminder_offset, remind_client, remind_project_owners, is_deleted, created_at, updated_at`

type EventStore struct {
	db *database.DB
}

func NewEventStore(db *database.DB) *EventStore {
	return &EventStore{db: db}
}

// Create inserts the event and its assigned users. ID and timestamps are assigned here.
func (s *EventStore) Create(ctx context.Context, e model.CalendarEvent) (*model.CalendarEvent, error) {
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO calendar_events (`+eventColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.OrganizationID, nullString(e.ProjectID), e.Subject, e.Description, e.Start.UTC(), nullTime(e.End),
			string(e.ReminderOffset), e.RemindClient, e.RemindProjectOwners, false, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert calendar event: %w", err)
		}
		return s.setAssignees(ctx, tx, e.ID, e.AssignedUserIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, e.ID)
}

// GetByID returns the event, including soft-deleted ones, or nil if it does not exist.
func (s *EventStore) GetByID(ctx context.Context, id string) (*model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`), id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}

	if e.AssignedUserIDs, err = s.assignees(ctx, s.db, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// GetForOrganization is GetByID scoped to an organization; deleted events are treated as absent.
func (s *EventStore) GetForOrganization(ctx context.Context, organizationID, id string) (*model.CalendarEvent, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	if e.OrganizationID != organizationID || e.IsDeleted {
		return nil, nil
	}
	return e, nil
}

// List returns an organization's live events ordered by start, optionally filtered by project.
func (s *EventStore) List(ctx context.Context, organizationID string, projectID *string) ([]model.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE organization_id = ? AND is_deleted = ?`
	args := []any{organizationID, false}
	if projectID != nil {
		query += ` AND project_id = ?`
		args = append(args, *projectID)
	}
	query += ` ORDER BY start_at ASC`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar events: %w", err)
	}
	rows.Close()

	for i := range events {
		if events[i].AssignedUserIDs, err = s.assignees(ctx, s.db, events[i].ID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// Update overwrites every mutable field of the event and its assignee set.
func (s *EventStore) Update(ctx context.Context, e model.CalendarEvent) (*model.CalendarEvent, error) {
	now := time.Now().UTC()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE calendar_events
			 SET project_id = ?, subject = ?, description = ?, start_at = ?, end_at = ?,
			     reminder_offset = ?, remind_client = ?, remind_project_owners = ?, updated_at = ?
			 WHERE id = ? AND is_deleted = ?`),
			nullString(e.ProjectID), e.Subject, e.Description, e.Start.UTC(), nullTime(e.End),
			string(e.ReminderOffset), e.RemindClient, e.RemindProjectOwners, now, e.ID, false,
		)
		if err != nil {
			return fmt.Errorf("update calendar event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update calendar event %s: %w", e.ID, ErrNotFound)
		}
		return s.setAssignees(ctx, tx, e.ID, e.AssignedUserIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, e.ID)
}

// SoftDelete flags the event as deleted. Reminder cleanup is the lifecycle handler's job.
func (s *EventStore) SoftDelete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE calendar_events SET is_deleted = ?, updated_at = ? WHERE id = ?`),
		true, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete calendar event: %w", err)
	}
	return nil
}

// LoadContext returns the event with its project and organization, or nil if the event is gone.
func (s *EventStore) LoadContext(ctx context.Context, eventID string) (*model.EventContext, error) {
	e, err := s.GetByID(ctx, eventID)
	if err != nil || e == nil {
		return nil, err
	}

	ec := &model.EventContext{Event: *e}

	org, err := getOrganization(ctx, s.db, e.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org != nil {
		ec.Organization = *org
	}

	if e.HasProject() {
		if ec.Project, err = getProject(ctx, s.db, *e.ProjectID); err != nil {
			return nil, err
		}
	}
	return ec, nil
}

func (s *EventStore) setAssignees(ctx context.Context, tx *sql.Tx, eventID string, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM calendar_event_users WHERE event_id = ?`), eventID); err != nil {
		return fmt.Errorf("clear event assignees: %w", err)
	}
	seen := make(map[string]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if _, dup := seen[uid]; dup || uid == "" {
			continue
		}
		seen[uid] = struct{}{}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO calendar_event_users (event_id, user_id) VALUES (?, ?)`), eventID, uid); err != nil {
			return fmt.Errorf("insert event assignee: %w", err)
		}
	}
	return nil
}

func (s *EventStore) assignees(ctx context.Context, q querier, eventID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, s.db.Rebind(
		`SELECT user_id FROM calendar_event_users WHERE event_id = ?`), eventID)
	if err != nil {
		return nil, fmt.Errorf("query event assignees: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event assignee: %w", err)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var projectID sql.NullString
	var end sql.NullTime
	var offset string

	if err := row.Scan(&e.ID, &e.OrganizationID, &projectID, &e.Subject, &e.Description, &e.Start, &end,
		&offset, &e.RemindClient, &e.RemindProjectOwners, &e.IsDeleted, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	e.ReminderOffset = model.ReminderOffset(offset)
	e.Start = e.Start.UTC()
	if projectID.Valid {
		e.ProjectID = &projectID.String
	}
	if end.Valid {
		t := end.Time.UTC()
		e.End = &t
	}
	return &e, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
