package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strob0t/scavengarr/internal/metrics"
)

// ShutdownTracker tracks in-flight requests so the HTTP layer can reject
// new work and drain existing work within a deadline on shutdown signal.
type ShutdownTracker struct {
	inFlight   int64
	draining   atomic.Bool
	drainedCh  chan struct{}
	drainOnce  sync.Once
}

func NewShutdownTracker() *ShutdownTracker {
	return &ShutdownTracker{drainedCh: make(chan struct{})}
}

// Begin registers one in-flight request; returns false if the tracker is
// draining, meaning the caller should reject new work.
func (s *ShutdownTracker) Begin() bool {
	if s.draining.Load() {
		return false
	}
	atomic.AddInt64(&s.inFlight, 1)
	metrics.InFlightRequests.Inc()
	return true
}

func (s *ShutdownTracker) End() {
	if atomic.AddInt64(&s.inFlight, -1) == 0 && s.draining.Load() {
		s.drainOnce.Do(func() { close(s.drainedCh) })
	}
	metrics.InFlightRequests.Dec()
}

// Drain marks the tracker as draining and waits up to deadline for
// in-flight requests to complete.
func (s *ShutdownTracker) Drain(ctx context.Context, deadline time.Duration) {
	s.draining.Store(true)
	if atomic.LoadInt64(&s.inFlight) == 0 {
		s.drainOnce.Do(func() { close(s.drainedCh) })
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-s.drainedCh:
	case <-timer.C:
	case <-ctx.Done():
	}
}
