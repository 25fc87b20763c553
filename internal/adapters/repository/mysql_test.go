package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS call_records").WillReturnResult(sqlmock.NewResult(0, 0))
	repo, err := NewMySQLRepositoryFromDB(db, zap.NewNop(), 0)
	require.NoError(t, err)
	return repo, mock
}

func TestMySQLRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t)
	ended := time.UnixMilli(1_750_000_000_000)
	rec := record("call-1", ended, time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs("call-1", rec.CallerNumber, rec.CallerName, ended.Add(-time.Minute).UnixMilli(), ended.UnixMilli(),
			rec.Transcript, rec.Intent, rec.SpamLikelihood, rec.LikelySpam, rec.Action, string(rec.Decision),
			ended.Add(time.Hour).UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRepository_GetAndList(t *testing.T) {
	repo, mock := newMockRepository(t)
	ended := time.UnixMilli(1_750_000_000_000)
	columns := []string{"id", "caller_number", "caller_name", "started_at", "ended_at", "transcript",
		"intent", "spam_likelihood", "likely_spam", "action", "decision", "expires_at"}

	mock.ExpectQuery("SELECT (.+) FROM call_records WHERE id = ?").
		WithArgs("call-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("call-1", "+15551234567", "", ended.Add(-time.Minute).UnixMilli(),
			ended.UnixMilli(), "hello", "Sales", 0.9, true, "block_caller", "decline_with_message", ended.Add(time.Hour).UnixMilli()))

	rec, err := repo.Get(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, core.DecisionDeclineMessage, rec.Decision)
	assert.True(t, rec.LikelySpam)
	assert.True(t, rec.EndedAt.Equal(ended))

	mock.ExpectQuery("SELECT (.+) FROM call_records WHERE id = ?").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	mock.ExpectQuery("SELECT (.+) FROM call_records WHERE expires_at > \\? ORDER BY ended_at DESC LIMIT \\?").
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("b", "+1", "", 0, 2, "", "", 0.1, false, "forward", "accept", ended.UnixMilli()).
			AddRow("a", "+1", "", 0, 1, "", "", 0.1, false, "forward", "accept", ended.UnixMilli()))

	list, err := repo.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRepository_Cleanup(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM call_records WHERE expires_at <= ?").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM call_records WHERE id = ?").
		WithArgs("call-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	require.NoError(t, repo.Cleanup(context.Background()))
	require.NoError(t, repo.Delete(context.Background(), "call-1"))
	repo.Stop()
	assert.NoError(t, mock.ExpectationsWereMet())
}
