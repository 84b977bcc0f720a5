package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds the whole probe run. Probes still running at the
// deadline are reported unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// BreakerProbe reports an outbound client as unhealthy while its circuit
// breaker is open. It makes no network call.
type BreakerProbe struct {
	Label string
	State func() string
}

func (p BreakerProbe) Name() string { return p.Label }

func (p BreakerProbe) Check(context.Context) error {
	if st := p.State(); st == "open" {
		return fmt.Errorf("circuit breaker %s", st)
	}
	return nil
}

// ConfigProbe fails when a setting a route depends on is empty.
type ConfigProbe struct {
	Label string
	Value func() string
}

func (p ConfigProbe) Name() string { return p.Label }

func (p ConfigProbe) Check(context.Context) error {
	if p.Value() == "" {
		return fmt.Errorf("not configured")
	}
	return nil
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every registered probe concurrently under a shared
// deadline and answers 200 when all pass, 503 otherwise.
//
// A probe that returns an error, panics, or is still running when the
// deadline expires is reported unhealthy with a message. Probes that miss the
// deadline keep running in the background; their late results are dropped.
//
// Mounted at GET /health without authentication. With no probes registered the
// body carries only the overall status.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	// One slot per registered probe, filled by position. A slot still nil
	// after the wait below belongs to a probe that never reported.
	var (
		mu       sync.Mutex
		reported = make([]*componentStatus, len(probes))
		wg       sync.WaitGroup
	)
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := runCheck(ctx, p)
			mu.Lock()
			reported[i] = &st
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// Deadline hit first: answer with whatever has reported so far.
	}

	resp := healthResponse{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(probes)),
	}

	mu.Lock()
	for i, p := range probes {
		st := componentStatus{Status: "unhealthy", Message: "health check timed out"}
		if reported[i] != nil {
			st = *reported[i]
		}
		if st.Status != "healthy" {
			resp.Status = "unhealthy"
		}
		resp.Components[p.Name()] = st
	}
	mu.Unlock()

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	JSON(w, r, code, resp)
}

// runCheck converts the outcome of one Check call, including a panic inside
// it, into a component status.
func runCheck(ctx context.Context, p HealthProbe) (st componentStatus) {
	defer func() {
		if rec := recover(); rec != nil {
			st = componentStatus{Status: "unhealthy", Message: fmt.Sprintf("check panicked: %v", rec)}
		}
	}()
	if err := p.Check(ctx); err != nil {
		return componentStatus{Status: "unhealthy", Message: err.Error()}
	}
	return componentStatus{Status: "healthy"}
}
