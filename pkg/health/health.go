// Package health provides liveness and readiness probe endpoints. Checks
// run periodically in the background; the HTTP endpoints only read the last
// recorded state, so probes stay cheap even when a check is slow.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.healthy.Store(err == nil)
	if err != nil {
		c.lastErr.Store(&err)
	}
}

// Service aggregates liveness and readiness checks and serves their state.
type Service struct {
	mu        sync.Mutex
	liveness  []*check
	readiness []*check

	ready  atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an empty health Service. Register checks before Start.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a liveness check. Liveness failures indicate
// the process itself is broken and should be restarted.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	s.liveness = append(s.liveness, c)
}

// AddReadinessCheck registers a readiness check. Readiness failures mean the
// process should not receive traffic right now.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	s.readiness = append(s.readiness, c)
}

// Start runs all checks once immediately and then every interval until Stop
// is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	runAll := func() {
		s.mu.Lock()
		checks := append(append([]*check(nil), s.liveness...), s.readiness...)
		s.mu.Unlock()
		for _, c := range checks {
			c.run(ctx)
		}
	}

	go func() {
		defer close(s.done)
		runAll()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runAll()
			}
		}
	}()
}

// Stop halts the background check loop.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// SetReady flips the manual readiness gate. Shutdown sets it to false so
// load balancers drain the instance before the listener closes.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// LiveEndpoint serves the liveness probe.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	checks := append([]*check(nil), s.liveness...)
	s.mu.Unlock()
	s.respond(w, checks, true)
}

// ReadyEndpoint serves the readiness probe. It reports unhealthy whenever
// the manual gate is down, regardless of check state.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	checks := append([]*check(nil), s.readiness...)
	s.mu.Unlock()
	s.respond(w, checks, s.ready.Load())
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Service) respond(w http.ResponseWriter, checks []*check, gate bool) {
	resp := probeResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
	healthy := gate

	for _, c := range checks {
		if c.healthy.Load() {
			resp.Checks[c.name] = "ok"
			continue
		}
		healthy = false
		msg := "failed"
		if p := c.lastErr.Load(); p != nil {
			msg = (*p).Error()
		}
		resp.Checks[c.name] = msg
	}

	code := http.StatusOK
	if !healthy {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
