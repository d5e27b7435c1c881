package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/model"
)

func newPostgresMock(t *testing.T) (*ReminderStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReminderStore(database.Wrap(db, database.DialectPostgres)), mock
}

func TestPostgresReplacePlanUsesNumberedPlaceholders(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reminders WHERE event_id = $1`)).
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)).
		WithArgs(sqlmock.AnyArg(), "evt-1", sqlmock.AnyArg(), "CLIENT", sqlmock.AnyArg(), true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := s.ReplacePlan(context.Background(), "evt-1", []model.Draft{
		{TriggerAt: baseTrigger, Target: model.ClientTarget(), WantsSMS: true},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "evt-1", got[0].EventID)
	assert.NotEmpty(t, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplacePlanRollsBack(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reminders WHERE event_id = $1`)).
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reminders`)).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	_, err := s.ReplacePlan(context.Background(), "evt-1", []model.Draft{
		{TriggerAt: baseTrigger, Target: model.ProjectCreatorTarget(), WantsSMS: true, WantsEmail: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkChannelSentNoop(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE reminders SET email_sent_at = $1 WHERE id = $2 AND email_sent_at IS NULL`)).
		WithArgs(sqlmock.AnyArg(), "rem-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.MarkChannelSent(context.Background(), "rem-1", model.ChannelEmail, baseNow)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchDue(t *testing.T) {
	s, mock := newPostgresMock(t)

	userID := "user-1"
	sent := baseNow.Add(-time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "event_id", "trigger_at", "target", "user_id", "wants_sms", "wants_email",
		"sms_sent_at", "email_sent_at", "expired_at", "created_at",
	}).AddRow("rem-1", "evt-1", baseTrigger, "ASSIGNED_USER", userID, true, true, sent, nil, nil, baseTrigger)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE trigger_at <= $1 AND expired_at IS NULL`)).
		WithArgs(sqlmock.AnyArg(), true, true, 50).
		WillReturnRows(rows)

	due, err := s.FetchDue(context.Background(), baseNow, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)

	r := due[0]
	assert.Equal(t, model.AssignedUserTarget(userID), r.Target)
	assert.False(t, r.Pending(model.ChannelSMS))
	assert.True(t, r.Pending(model.ChannelEmail))
	assert.NoError(t, mock.ExpectationsWereMet())
}
