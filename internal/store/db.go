// Package store is the relational persistence layer for the signal
// pipeline: signals, webhook events, market contexts, experiments,
// execution policies, trade recommendations, orders, trades, positions,
// bias config, its adaptive-tuner history, feature flags, and the event
// log. Built on GORM over Postgres, grounded on the same GORM usage the
// reference corpus uses for MySQL (asset-snapshot recorder) and Postgres
// (timescale repository) storage layers.
package store

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the GORM connection and exposes the repositories built on top
// of it.
type DB struct {
	gorm *gorm.DB

	Signals         *SignalRepository
	Contexts        *ContextRepository
	Experiments     *ExperimentRepository
	Orders          *OrderRepository
	Trades          *TradeRepository
	Config          *ConfigRepository
	Flags           *FlagRepository
}

// Open connects to Postgres at dsn, migrates the schema, and wires every
// repository against the shared connection pool.
func Open(dsn string, poolMax int, logger *zap.Logger) (*DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolMax)
	sqlDB.SetMaxIdleConns(poolMax / 4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(gdb); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	db := &DB{gorm: gdb}
	db.Signals = NewSignalRepository(gdb, logger.Named("store.signals"))
	db.Contexts = &ContextRepository{db: gdb}
	db.Experiments = &ExperimentRepository{db: gdb}
	db.Orders = NewOrderRepository(gdb, logger.Named("store.orders"))
	db.Trades = &TradeRepository{db: gdb}
	db.Config = &ConfigRepository{db: gdb}
	db.Flags = &FlagRepository{db: gdb}
	return db, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&signalRow{},
		&webhookEventRow{},
		&marketContextRow{},
		&experimentRow{},
		&executionPolicyRow{},
		&recommendationRow{},
		&orderRow{},
		&tradeRow{},
		&positionRow{},
		&biasConfigRow{},
		&biasAdaptiveHistoryRow{},
		&featureFlagRow{},
		&eventLogRow{},
	); err != nil {
		return err
	}

	// Explicit indexes beyond what AutoMigrate derives from struct tags.
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_signals_status_created_at ON signals (status, created_at)`,
		// Not unique: ExistsByHash only dedups within a rolling window, so
		// an identical signal resubmitted after the window must be allowed
		// back in. The storage layer mirrors that windowed policy rather
		// than enforcing a stricter global one.
		`CREATE INDEX IF NOT EXISTS idx_signals_signal_hash ON signals (signal_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_signal_id ON orders (signal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_created_at ON orders (status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_events_created_at_status ON webhook_events (created_at, status)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_signal_id ON experiments (signal_id)`,
	}
	for _, stmt := range statements {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("index: %s: %w", stmt, err)
		}
	}
	return nil
}
