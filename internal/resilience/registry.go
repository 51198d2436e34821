// Package resilience guards upstream endpoints with per-endpoint circuit
// breaking, call-interval limiting, and retry with backoff.
package resilience

import (
	"sync"
	"time"
)

// RegistryConfig controls per-endpoint gating behavior.
type RegistryConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens. Default: 3.
	FailureThreshold int

	// OpenDuration is how long the breaker refuses calls after the last
	// failure before allowing a half-open probe. Default: 300s.
	OpenDuration time.Duration

	// MinCallInterval is the minimum gap between attempts on the same
	// endpoint, independent of breaker state. Default: 2s.
	MinCallInterval time.Duration
}

// DefaultRegistryConfig returns the production gating defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		FailureThreshold: 3,
		OpenDuration:     300 * time.Second,
		MinCallInterval:  2 * time.Second,
	}
}

// EndpointState is a read-only snapshot of one endpoint's gating state.
type EndpointState struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Open                bool      `json:"open"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	LastAttempt         time.Time `json:"last_attempt,omitempty"`
}

// endpointState is the mutable per-key record. Created lazily on first
// reference; only touched while holding the registry mutex.
type endpointState struct {
	consecutiveFailures int
	open                bool
	lastFailure         time.Time
	lastAttempt         time.Time
}

// Registry tracks breaker and call-interval state per endpoint key
// (the endpoint URL string). Multiple facilities may share a key and the
// orchestrator calls in from concurrent fetch tasks, so every state
// mutation is serialized behind one mutex.
type Registry struct {
	mu        sync.Mutex
	cfg       RegistryConfig
	endpoints map[string]*endpointState

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewRegistry creates a Registry with the given config, applying defaults
// for zero values.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 300 * time.Second
	}
	if cfg.MinCallInterval <= 0 {
		cfg.MinCallInterval = 2 * time.Second
	}
	return &Registry{
		cfg:       cfg,
		endpoints: make(map[string]*endpointState),
		nowFunc:   time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (r *Registry) WithNow(now func() time.Time) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFunc = now
	return r
}

// ShouldCall reports whether a call to the endpoint is currently allowed.
// It refuses when less than MinCallInterval has passed since the last
// attempt (regardless of breaker state), or when the breaker is open and
// the cool-down has not elapsed. Once the cool-down elapses a probe call
// is allowed; its outcome decides whether the breaker closes or re-opens.
func (r *Registry) ShouldCall(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(key)
	now := r.nowFunc()

	// Call-interval limit applies first and unconditionally.
	if !st.lastAttempt.IsZero() && now.Sub(st.lastAttempt) < r.cfg.MinCallInterval {
		return false
	}

	if st.open && now.Sub(st.lastFailure) < r.cfg.OpenDuration {
		return false
	}
	return true
}

// Acquire is ShouldCall and RecordAttempt under one lock: it checks the
// gates and, when the call is allowed, marks the attempt before releasing
// the mutex. Concurrent fetchers racing for the same endpoint therefore
// cannot both win a half-open slot; exactly one acquires the probe and
// the rest are refused by the interval window it just started.
func (r *Registry) Acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(key)
	now := r.nowFunc()

	if !st.lastAttempt.IsZero() && now.Sub(st.lastAttempt) < r.cfg.MinCallInterval {
		return false
	}
	if st.open && now.Sub(st.lastFailure) < r.cfg.OpenDuration {
		return false
	}

	st.lastAttempt = now
	return true
}

// RecordAttempt marks that a call was just issued on the endpoint. This
// starts the MinCallInterval window.
func (r *Registry) RecordAttempt(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(key).lastAttempt = r.nowFunc()
}

// RecordSuccess closes the breaker and zeroes the failure counter.
func (r *Registry) RecordSuccess(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(key)
	st.consecutiveFailures = 0
	st.open = false
}

// RecordFailure increments the consecutive-failure counter and resets the
// failure clock. A failed half-open probe lands here too, which re-opens
// the breaker with a fresh cool-down.
func (r *Registry) RecordFailure(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(key)
	st.consecutiveFailures++
	st.lastFailure = r.nowFunc()
	if st.consecutiveFailures >= r.cfg.FailureThreshold {
		st.open = true
	}
}

// States returns a snapshot of all endpoint states for observability.
func (r *Registry) States() map[string]EndpointState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]EndpointState, len(r.endpoints))
	for key, st := range r.endpoints {
		out[key] = EndpointState{
			ConsecutiveFailures: st.consecutiveFailures,
			Open:                st.open,
			LastFailure:         st.lastFailure,
			LastAttempt:         st.lastAttempt,
		}
	}
	return out
}

// state returns the record for key, creating it lazily. Callers must hold mu.
func (r *Registry) state(key string) *endpointState {
	st, ok := r.endpoints[key]
	if !ok {
		st = &endpointState{}
		r.endpoints[key] = st
	}
	return st
}
