package config

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FlagSource loads the current set of feature flags from storage.
type FlagSource interface {
	LoadFlags(ctx context.Context) (map[string]bool, error)
}

// FlagStore is a read-mostly, periodically refreshed feature-flag cache.
// Readers never block on storage; the refresh loop owns the only write
// path.
type FlagStore struct {
	logger *zap.Logger
	source FlagSource
	period time.Duration

	mu    sync.RWMutex
	flags map[string]bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewFlagStore creates a FlagStore that refreshes from source every period.
func NewFlagStore(logger *zap.Logger, source FlagSource, period time.Duration) *FlagStore {
	return &FlagStore{
		logger: logger.Named("feature-flags"),
		source: source,
		period: period,
		flags:  make(map[string]bool),
	}
}

// Start performs an initial load and begins the periodic refresh loop.
func (s *FlagStore) Start(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("initial feature flag load failed", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.refreshLoop(runCtx)
	return nil
}

// Stop halts the refresh loop.
func (s *FlagStore) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *FlagStore) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn("feature flag refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *FlagStore) refresh(ctx context.Context) error {
	flags, err := s.source.LoadFlags(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.flags = flags
	s.mu.Unlock()
	return nil
}

// Enabled reports whether name is set, defaulting to false when unknown.
func (s *FlagStore) Enabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}
