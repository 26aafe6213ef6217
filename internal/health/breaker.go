// Package health implements the per-plugin circuit breaker (an explicit
// closed/open/half-open state machine with exponential block durations)
// and the in-flight request tracking used for graceful shutdown.
package health

import (
	"sync"
	"time"

	"github.com/strob0t/scavengarr/internal/metrics"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	failureThreshold = 3
	blockBase        = 2 * time.Minute
	blockMax         = 15 * time.Minute
	ewmaAlpha        = 0.2
)

type pluginHealth struct {
	state               State
	consecutiveFailures int
	blockedUntil        time.Time
	halfOpenProbeInFlight bool

	lastError     string
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastLatency   time.Duration
	lastTimeout   bool
	ewmaLatencyMS float64

	totalRequests int64
	totalFailures int64
	timeoutCount  int64
}

// Tracker is the process-wide per-plugin health table.
type Tracker struct {
	mu      sync.Mutex
	plugins map[string]*pluginHealth
}

func NewTracker() *Tracker {
	return &Tracker{plugins: make(map[string]*pluginHealth)}
}

func (t *Tracker) entry(name string) *pluginHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.plugins[name]
	if !ok {
		e = &pluginHealth{state: StateClosed}
		t.plugins[name] = e
	}
	return e
}

// Allow reports whether a request may proceed: closed admits freely;
// open rejects until blockedUntil; half-open admits exactly one probe
// and rejects concurrent probes while one is in flight.
func (t *Tracker) Allow(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(name)

	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Now().Before(e.blockedUntil) {
			return false
		}
		e.state = StateHalfOpen
		e.halfOpenProbeInFlight = true
		return true
	case StateHalfOpen:
		if e.halfOpenProbeInFlight {
			return false
		}
		e.halfOpenProbeInFlight = true
		return true
	default:
		return true
	}
}

func (t *Tracker) entryLocked(name string) *pluginHealth {
	e, ok := t.plugins[name]
	if !ok {
		e = &pluginHealth{state: StateClosed}
		t.plugins[name] = e
	}
	return e
}

// RecordResult records the outcome of a plugin invocation and drives the
// breaker transitions plus metrics.
func (t *Tracker) RecordResult(name string, latency time.Duration, timeout bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(name)

	e.totalRequests++
	e.lastLatency = latency
	e.lastTimeout = timeout
	latencyMS := float64(latency.Milliseconds())
	if e.ewmaLatencyMS == 0 {
		e.ewmaLatencyMS = latencyMS
	} else {
		e.ewmaLatencyMS = ewmaAlpha*latencyMS + (1-ewmaAlpha)*e.ewmaLatencyMS
	}
	metrics.PluginRequestDuration.WithLabelValues(name).Observe(latency.Seconds())

	if err == nil {
		e.consecutiveFailures = 0
		e.lastSuccessAt = time.Now()
		e.halfOpenProbeInFlight = false
		if e.state != StateClosed {
			e.state = StateClosed
		}
		metrics.PluginRequestsTotal.WithLabelValues(name, "ok").Inc()
		metrics.PluginAvailable.WithLabelValues(name).Set(1)
		return
	}

	e.totalFailures++
	e.lastError = err.Error()
	e.lastFailureAt = time.Now()
	e.consecutiveFailures++
	if timeout {
		e.timeoutCount++
	}
	status := "error"
	if timeout {
		status = "timeout"
	}
	metrics.PluginRequestsTotal.WithLabelValues(name, status).Inc()

	if e.state == StateHalfOpen {
		e.halfOpenProbeInFlight = false
		e.state = StateOpen
		e.blockedUntil = time.Now().Add(exponentialBlockDuration(e.consecutiveFailures))
		metrics.PluginAvailable.WithLabelValues(name).Set(0)
		return
	}

	if e.consecutiveFailures >= failureThreshold {
		e.state = StateOpen
		e.blockedUntil = time.Now().Add(exponentialBlockDuration(e.consecutiveFailures))
		metrics.PluginAvailable.WithLabelValues(name).Set(0)
	}
}

func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	extra := consecutiveFailures - failureThreshold
	if extra < 0 {
		extra = 0
	}
	d := blockBase
	for i := 0; i < extra; i++ {
		d *= 2
		if d >= blockMax {
			return blockMax
		}
	}
	if d > blockMax {
		return blockMax
	}
	return d
}

// Snapshot returns a read-only view of a plugin's current health fields.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	BlockedUntil        *time.Time
	LastError           string
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
	LastLatency         time.Duration
	LastTimeout         bool
	EWMALatencyMS       float64
	TotalRequests       int64
	TotalFailures       int64
	TimeoutCount        int64
}

func (t *Tracker) Snapshot(name string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(name)

	snap := Snapshot{
		State:               e.state,
		ConsecutiveFailures: e.consecutiveFailures,
		LastError:           e.lastError,
		LastLatency:         e.lastLatency,
		LastTimeout:         e.lastTimeout,
		EWMALatencyMS:       e.ewmaLatencyMS,
		TotalRequests:       e.totalRequests,
		TotalFailures:       e.totalFailures,
		TimeoutCount:        e.timeoutCount,
	}
	if !e.blockedUntil.IsZero() {
		bu := e.blockedUntil
		snap.BlockedUntil = &bu
	}
	if !e.lastSuccessAt.IsZero() {
		ls := e.lastSuccessAt
		snap.LastSuccessAt = &ls
	}
	if !e.lastFailureAt.IsZero() {
		lf := e.lastFailureAt
		snap.LastFailureAt = &lf
	}
	return snap
}
