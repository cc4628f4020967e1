package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/bias"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/internal/webhook"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func testConfig() *types.ServerConfig {
	return &types.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		WebSocketPath:  "/ws/monitor",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxConnections: 8,
	}
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	logger := zap.NewNop()
	db := &store.DB{}
	db.Signals = store.NewSignalRepository(gdb, logger)
	db.Orders = store.NewOrderRepository(gdb, logger)

	tracker := apperr.NewTracker(10)
	ingestor := webhook.New(logger, db.Signals, tracker, "", false, time.Minute)
	biasAgg := bias.New(logger, bias.DefaultSourceWeights())
	biasIngestor := webhook.NewBiasIngestor(logger, biasAgg, tracker, "", false)

	return NewServer(logger, testConfig(), ingestor, biasIngestor, db, tracker), mock
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleWebhook_InvalidPayloadReturnsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("POST", "/api/v1/webhook/signal", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_PAYLOAD")
}

func TestHandleRecentSignals_ReturnsRepositoryResults(t *testing.T) {
	s, mock := newTestServer(t)
	rows := sqlmock.NewRows([]string{
		"id", "symbol", "direction", "timeframe", "source_timestamp",
		"signal_hash", "status", "processed", "processing_lock",
		"processing_attempts", "created_at", "updated_at",
	})
	mock.ExpectQuery(`SELECT \* FROM "signals"`).WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v1/signals/recent", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleRecentOrders_DatabaseErrorReturns500(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT \* FROM "orders"`).WillReturnError(errSentinel("boom"))

	req := httptest.NewRequest("GET", "/api/v1/orders/recent", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, 500, w.Code)
}

func TestHandleRecentErrors_ReflectsTrackedEntries(t *testing.T) {
	s, _ := newTestServer(t)
	s.tracker.Record(apperr.Wrap(apperr.KindTransient, "test.stage", errSentinel("boom")))

	req := httptest.NewRequest("GET", "/api/v1/errors/recent", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "test.stage")
}

func TestHandleAuditTrail_InvalidSignalIDReturnsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/audit/webhook/not-a-uuid", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
