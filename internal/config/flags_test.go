package config_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/config"
)

type fakeFlagSource struct {
	mu    sync.Mutex
	flags map[string]bool
	calls int
}

func (f *fakeFlagSource) LoadFlags(ctx context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]bool, len(f.flags))
	for k, v := range f.flags {
		out[k] = v
	}
	return out, nil
}

func (f *fakeFlagSource) set(flags map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = flags
}

func (f *fakeFlagSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFlagStore_EnabledIsFalseForUnknownFlag(t *testing.T) {
	store := config.NewFlagStore(zap.NewNop(), &fakeFlagSource{}, time.Hour)
	assert.False(t, store.Enabled("anything"))
}

func TestFlagStore_StartLoadsFlagsImmediately(t *testing.T) {
	source := &fakeFlagSource{flags: map[string]bool{"adaptive_tuner": true}}
	store := config.NewFlagStore(zap.NewNop(), source, time.Hour)

	require.NoError(t, store.Start(context.Background()))
	defer store.Stop()

	assert.True(t, store.Enabled("adaptive_tuner"))
	assert.False(t, store.Enabled("unknown_flag"))
}

func TestFlagStore_RefreshLoopPicksUpLaterChanges(t *testing.T) {
	source := &fakeFlagSource{flags: map[string]bool{"x": false}}
	store := config.NewFlagStore(zap.NewNop(), source, 10*time.Millisecond)

	require.NoError(t, store.Start(context.Background()))
	defer store.Stop()

	source.set(map[string]bool{"x": true})
	assert.Eventually(t, func() bool {
		return store.Enabled("x")
	}, time.Second, 5*time.Millisecond)
}

func TestFlagStore_StopHaltsRefreshLoop(t *testing.T) {
	source := &fakeFlagSource{}
	store := config.NewFlagStore(zap.NewNop(), source, 5*time.Millisecond)

	require.NoError(t, store.Start(context.Background()))
	store.Stop()

	calls := source.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, source.callCount(), "no further refreshes should happen after Stop")
}
