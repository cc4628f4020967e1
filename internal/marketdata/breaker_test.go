package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := newCircuitBreaker(3, 50*time.Millisecond)

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, stateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, stateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	assert.Equal(t, stateOpen, b.State())
	assert.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, stateHalfOpen, b.State())
}

func TestCircuitBreaker_HalfOpenFailureReopensImmediately(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	b.Allow() // transitions to half-open
	b.RecordFailure()
	assert.Equal(t, stateOpen, b.State())
}

func TestCircuitBreaker_SuccessResetsToClosed(t *testing.T) {
	b := newCircuitBreaker(2, time.Second)
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, stateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, stateClosed, b.State(), "failure count must reset after a success")
}
