package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func newMockRepo(t *testing.T) (*SignalRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewSignalRepository(gdb, zap.NewNop()), mock
}

func TestClaimBatch_ClaimsAndLocksInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	id := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "symbol", "direction", "timeframe", "source_timestamp",
		"signal_hash", "status", "processed", "processing_lock",
		"processing_attempts", "created_at", "updated_at",
	}).AddRow(id, "SPY", "long", "5m", now, "hash-1", "pending", false, false, 0, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM signals`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE .*signals.* SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.ClaimBatch(context.Background(), 10, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)
	assert.True(t, claimed[0].ProcessingLock, "claimed rows come back already marked locked")
	assert.Equal(t, 1, claimed[0].ProcessingAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBatch_EmptyResultSkipsLockUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id"})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM signals`).WillReturnRows(rows)
	mock.ExpectCommit()

	claimed, err := repo.ClaimBatch(context.Background(), 10, now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBatch_SelectErrorRollsBackAndPropagates(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM signals`).WillReturnError(assertErr)
	mock.ExpectRollback()

	_, err := repo.ClaimBatch(context.Background(), 10, now)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed_UpdatesStatusAndClearsLock(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	experimentID := uuid.New()

	mock.ExpectExec(`UPDATE .*signals.* SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkProcessed(context.Background(), id, types.SignalStatusApproved, &experimentID, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var assertErr = errSentinel("mock select failure")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
