package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/model"
)

// ErrNotFound is returned when a mutation targets a row that does not exist.
var ErrNotFound = errors.New("not found")

const reminderColumns = `id, event_id, trigger_at, target, user_id, wants_sms, wants_email,
	sms_sent_at, email_sent_at, expired_at, created_at`

// ReminderStore owns the reminders table. All mutation goes through ReplacePlan,
// DeleteAllForEvent, MarkChannelSent and ExpireStale.
type ReminderStore struct {
	db *database.DB
}

func NewReminderStore(db *database.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// ReplacePlan atomically swaps the event's reminder set for drafts. Every
// inserted row gets a fresh id, even when an identical target existed before.
func (s *ReminderStore) ReplacePlan(ctx context.Context, eventID string, drafts []model.Draft) ([]model.Reminder, error) {
	now := time.Now().UTC()
	reminders := make([]model.Reminder, 0, len(drafts))

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM reminders WHERE event_id = ?`), eventID); err != nil {
			return fmt.Errorf("delete reminders for event %s: %w", eventID, err)
		}

		for _, d := range drafts {
			r := model.Reminder{
				ID:         uuid.NewString(),
				EventID:    eventID,
				TriggerAt:  d.TriggerAt.UTC(),
				Target:     d.Target,
				WantsSMS:   d.WantsSMS,
				WantsEmail: d.WantsEmail,
				CreatedAt:  now,
			}
			_, err := tx.ExecContext(ctx, s.db.Rebind(
				`INSERT INTO reminders (id, event_id, trigger_at, target, user_id, wants_sms, wants_email, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
				r.ID, r.EventID, r.TriggerAt, string(r.Target.Kind()), nullString(r.Target.UserIDPtr()),
				r.WantsSMS, r.WantsEmail, r.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert reminder %s for event %s: %w", r.Target, eventID, err)
			}
			reminders = append(reminders, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

// DeleteAllForEvent removes every reminder of the event and returns how many were removed.
func (s *ReminderStore) DeleteAllForEvent(ctx context.Context, eventID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reminders WHERE event_id = ?`), eventID)
	if err != nil {
		return 0, fmt.Errorf("delete reminders for event %s: %w", eventID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FetchDue returns reminders whose trigger time is at or before now and that
// still have a wanted channel unsent. Expired reminders are excluded. A limit
// of zero or less returns every due reminder.
func (s *ReminderStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
		WHERE trigger_at <= ? AND expired_at IS NULL
		  AND ((wants_sms = ? AND sms_sent_at IS NULL) OR (wants_email = ? AND email_sent_at IS NULL))
		ORDER BY trigger_at ASC, id ASC`
	args := []any{now.UTC(), true, true}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListByEvent returns the event's current reminder set ordered by target.
func (s *ReminderStore) ListByEvent(ctx context.Context, eventID string) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT `+reminderColumns+` FROM reminders WHERE event_id = ? ORDER BY target ASC, user_id ASC`), eventID)
	if err != nil {
		return nil, fmt.Errorf("query reminders for event %s: %w", eventID, err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// GetByID returns the reminder or nil if it does not exist.
func (s *ReminderStore) GetByID(ctx context.Context, id string) (*model.Reminder, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`), id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reminder: %w", err)
	}
	return r, nil
}

// MarkChannelSent records a successful send for ch only if none is recorded yet.
// It reports whether this call set the value; a missing row yields false, nil.
func (s *ReminderStore) MarkChannelSent(ctx context.Context, reminderID string, ch model.Channel, at time.Time) (bool, error) {
	var query string
	switch ch {
	case model.ChannelSMS:
		query = `UPDATE reminders SET sms_sent_at = ? WHERE id = ? AND sms_sent_at IS NULL`
	case model.ChannelEmail:
		query = `UPDATE reminders SET email_sent_at = ? WHERE id = ? AND email_sent_at IS NULL`
	default:
		return false, fmt.Errorf("mark reminder sent: unknown channel %q", ch)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), at.UTC(), reminderID)
	if err != nil {
		return false, fmt.Errorf("mark reminder %s %s sent: %w", reminderID, ch, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ExpireStale marks still-due reminders as expired so they stop being
// fetched. A reminder expires only once both its trigger time and its
// creation time are before cutoff; one planned after it was already due gets
// the full window before it is given up.
func (s *ReminderStore) ExpireStale(ctx context.Context, cutoff, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE reminders SET expired_at = ?
		 WHERE expired_at IS NULL AND trigger_at < ? AND created_at < ?
		   AND ((wants_sms = ? AND sms_sent_at IS NULL) OR (wants_email = ? AND email_sent_at IS NULL))`),
		at.UTC(), cutoff.UTC(), cutoff.UTC(), true, true,
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale reminders: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanReminders(rows *sql.Rows) ([]model.Reminder, error) {
	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

func scanReminder(row rowScanner) (*model.Reminder, error) {
	var r model.Reminder
	var target string
	var userID sql.NullString
	var smsSent, emailSent, expired sql.NullTime

	if err := row.Scan(&r.ID, &r.EventID, &r.TriggerAt, &target, &userID, &r.WantsSMS, &r.WantsEmail,
		&smsSent, &emailSent, &expired, &r.CreatedAt); err != nil {
		return nil, err
	}

	var uid *string
	if userID.Valid {
		uid = &userID.String
	}
	t, err := model.ParseTarget(target, uid)
	if err != nil {
		return nil, err
	}
	r.Target = t
	r.TriggerAt = r.TriggerAt.UTC()
	r.SMSSentAt = timePtr(smsSent)
	r.EmailSentAt = timePtr(emailSent)
	r.ExpiredAt = timePtr(expired)
	return &r, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
