package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type mockHealthProbe struct {
	name     string
	checkErr error
	delay    time.Duration
}

func (m *mockHealthProbe) Name() string { return m.name }

func (m *mockHealthProbe) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.checkErr
}

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	srv := newTestServer(t)
	srv.HealthProbes = probes
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rec.Code, resp
}

func TestHandleHealth_NoProbes(t *testing.T) {
	code, resp := runHealth(t)
	if code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("expected healthy 200, got %d %q", code, resp.Status)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	code, resp := runHealth(t, &mockHealthProbe{name: "slack"}, &mockHealthProbe{name: "hubspot"})
	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if len(resp.Components) != 2 || resp.Components["slack"].Status != "healthy" {
		t.Errorf("unexpected components: %+v", resp.Components)
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	code, resp := runHealth(t,
		&mockHealthProbe{name: "slack"},
		&mockHealthProbe{name: "hubspot", checkErr: errors.New("boom")},
	)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if resp.Components["hubspot"].Message != "boom" {
		t.Errorf("unexpected hubspot component: %+v", resp.Components["hubspot"])
	}
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	code, resp := runHealth(t, &mockHealthProbe{name: "slow", delay: 10 * time.Second})
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if resp.Components["slow"].Status != "unhealthy" {
		t.Errorf("expected slow probe unhealthy, got %+v", resp.Components["slow"])
	}
}

type panickingCheck struct{ name string }

func (p panickingCheck) Name() string { return p.name }

func (p panickingCheck) Check(context.Context) error { panic("nil map write") }

func TestHandleHealth_PanicReportedUnhealthy(t *testing.T) {
	code, resp := runHealth(t, panickingCheck{name: "broken"}, &mockHealthProbe{name: "slack"})
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	broken := resp.Components["broken"]
	if broken.Status != "unhealthy" || !strings.Contains(broken.Message, "nil map write") {
		t.Errorf("unexpected broken component: %+v", broken)
	}
	if resp.Components["slack"].Status != "healthy" {
		t.Errorf("a panic in one check must not affect others: %+v", resp.Components["slack"])
	}
}

func TestHandleHealth_TimedOutAlongsideHealthy(t *testing.T) {
	code, resp := runHealth(t,
		&mockHealthProbe{name: "fast"},
		&mockHealthProbe{name: "slow", delay: 10 * time.Second},
	)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if resp.Components["fast"].Status != "healthy" {
		t.Errorf("fast check should have reported: %+v", resp.Components["fast"])
	}
	if resp.Components["slow"].Message != "health check timed out" {
		t.Errorf("unexpected slow component: %+v", resp.Components["slow"])
	}
}

func TestBreakerProbe(t *testing.T) {
	state := "closed"
	p := BreakerProbe{Label: "slack-webhook", State: func() string { return state }}
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("closed breaker should be healthy: %v", err)
	}
	state = "half-open"
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("half-open breaker should be healthy: %v", err)
	}
	state = "open"
	if err := p.Check(context.Background()); err == nil {
		t.Error("open breaker should be unhealthy")
	}
}

func TestConfigProbe(t *testing.T) {
	v := ""
	p := ConfigProbe{Label: "slack_webhook_url", Value: func() string { return v }}
	if err := p.Check(context.Background()); err == nil {
		t.Error("empty value should be unhealthy")
	}
	v = "https://hooks.slack.com/services/x"
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("set value should be healthy: %v", err)
	}
}
