package apperr

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Entry is one tracked error occurrence, exposed through the monitoring
// read API.
type Entry struct {
	Kind      Kind      `json:"kind"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker is a bounded, thread-safe ring buffer of recent errors. Every
// caught error in the pipeline must reach either an audit row or the
// tracker; this is the backstop for errors that have no natural audit row
// of their own (background worker failures, provider faults).
type Tracker struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	counter *prometheus.CounterVec
}

// NewTracker creates a Tracker holding up to capacity entries.
func NewTracker(capacity int) *Tracker {
	return &Tracker{
		cap: capacity,
		counter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalpipe",
			Name:      "errors_total",
			Help:      "Count of errors observed by the pipeline, by kind and stage.",
		}, []string{"kind", "stage"}),
	}
}

// Collector exposes the Prometheus counter vector for registration.
func (t *Tracker) Collector() prometheus.Collector { return t.counter }

// Record appends an error occurrence, evicting the oldest entry once the
// tracker is at capacity.
func (t *Tracker) Record(err *Error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, Entry{
		Kind:      err.Kind,
		Stage:     err.Stage,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
	if len(t.entries) > t.cap {
		t.entries = t.entries[len(t.entries)-t.cap:]
	}
	t.counter.WithLabelValues(string(err.Kind), err.Stage).Inc()
}

// Recent returns a copy of the last n tracked entries (n<=0 returns all).
func (t *Tracker) Recent(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]Entry, n)
	copy(out, t.entries[len(t.entries)-n:])
	return out
}
