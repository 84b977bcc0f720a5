package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"hubrelay/internal/config"
	"hubrelay/internal/core"
	"hubrelay/internal/security"
)

// buildTestServer loads a local config from the environment and wires the
// full route table.
func buildTestServer(t *testing.T) *core.Server {
	t.Helper()

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	return srv
}

// TestHealthEndpoint verifies the wired server reports healthy when the
// Slack webhook URL is configured.
func TestHealthEndpoint(t *testing.T) {
	setTestEnv(t)
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /health: got status %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if status := resp["status"]; status != "healthy" {
		t.Errorf("GET /health: got status=%v, want 'healthy'", status)
	}
}

// TestHealthEndpoint_MissingSlackURL verifies the config probe fails.
func TestHealthEndpoint_MissingSlackURL(t *testing.T) {
	setTestEnv(t)
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health: got status %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestRoutesMounted verifies every public route answers on the wired router.
func TestRoutesMounted(t *testing.T) {
	setTestEnv(t)
	srv := buildTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/webhook/hubspot", http.StatusOK},
		{http.MethodGet, "/api/webhook/form-submitted", http.StatusOK},
		{http.MethodGet, "/api/webhook/contact-created", http.StatusOK},
		// No access token configured, so no poller.
		{http.MethodGet, "/api/cron/check-form-submissions", http.StatusInternalServerError},
		// No public app client id configured.
		{http.MethodGet, "/api/auth/authorize", http.StatusInternalServerError},
		{http.MethodGet, "/api/auth/callback?error=access_denied", http.StatusBadRequest},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("got status %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

// TestWebhookToSlack posts an unsigned contact creation and checks that the
// detached fan-out has reached Slack once Shutdown returns.
func TestWebhookToSlack(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []string
	)
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		payloads = append(payloads, string(b))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()

	setTestEnv(t)
	t.Setenv("SLACK_WEBHOOK_URL", slack.URL)
	srv := buildTestServer(t)

	body := `[{"subscriptionType":"contact.creation","portalId":111,"objectId":42,"occurredAt":1700000000000}]`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/hubspot", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST webhook: got status %d; body: %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("slack received %d payloads, want 1", len(payloads))
	}
	if !strings.Contains(payloads[0], "42") || !strings.Contains(payloads[0], "111") {
		t.Errorf("payload missing contact link parts: %s", payloads[0])
	}
}

// TestSignedFormSubmissionToSlack posts a v3-signed form_submission.v2 event
// through the fully wired server, once with submission enrichment configured
// and once without. The event has no formId, so the link is keyed by objectId.
func TestSignedFormSubmissionToSlack(t *testing.T) {
	for _, enrich := range []bool{false, true} {
		t.Run(fmt.Sprintf("enrich=%v", enrich), func(t *testing.T) {
			var (
				mu       sync.Mutex
				payloads []string
				lookups  int
			)
			slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				mu.Lock()
				payloads = append(payloads, string(b))
				mu.Unlock()
				w.WriteHeader(http.StatusOK)
			}))
			defer slack.Close()
			hubspot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				lookups++
				mu.Unlock()
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"results":[]}`))
			}))
			defer hubspot.Close()

			setTestEnv(t)
			t.Setenv("SLACK_WEBHOOK_URL", slack.URL)
			t.Setenv("HUBSPOT_PRIVATE_APP_CLIENT_SECRET", "client-secret")
			t.Setenv("PUBLIC_BASE_URL", "https://relay.example.com")
			if enrich {
				t.Setenv("HUBSPOT_PRIVATE_APP_ACCESS_TOKEN", "pat-test")
				t.Setenv("HUBSPOT_API_BASE_URL", hubspot.URL)
				t.Setenv("HUBSPOT_ENRICH_SUBMISSIONS", "true")
			}
			srv := buildTestServer(t)

			body := `[{"subscriptionType":"form_submission.v2","portalId":111,"objectId":"abc","occurredAt":1700000000000}]`
			ts := fmt.Sprintf("%d", time.Now().UnixMilli())
			signedURL := "https://relay.example.com/api/webhook/hubspot"
			req := httptest.NewRequest(http.MethodPost, "/api/webhook/hubspot", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(security.HeaderSignatureV3, security.SignV3("client-secret", http.MethodPost, signedURL, []byte(body), ts))
			req.Header.Set(security.HeaderRequestTimestamp, ts)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("POST webhook: got status %d; body: %s", rec.Code, rec.Body.String())
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"received":true}` {
				t.Errorf("POST webhook: got body %s", got)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if len(payloads) != 1 {
				t.Fatalf("slack received %d payloads, want 1", len(payloads))
			}
			if !strings.Contains(payloads[0], "/forms/111/editor/abc/submissions") {
				t.Errorf("payload missing submissions link: %s", payloads[0])
			}
			if lookups != 0 {
				t.Errorf("hubspot called %d times for an event without formId", lookups)
			}
		})
	}
}

// TestWarnAsyncFanoutOnLambda verifies the cold-start warning fires only for
// async fan-out inside Lambda.
func TestWarnAsyncFanoutOnLambda(t *testing.T) {
	tests := []struct {
		name     string
		mode     config.FanoutMode
		onLambda bool
		wantWarn bool
	}{
		{"async on lambda", config.FanoutAsync, true, true},
		{"queue on lambda", config.FanoutQueue, true, false},
		{"async locally", config.FanoutAsync, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			cfg := &config.Config{Fanout: config.FanoutConfig{Mode: tt.mode}}

			warnAsyncFanoutOnLambda(cfg, logger, tt.onLambda)

			got := strings.Contains(buf.String(), "FANOUT_MODE=queue")
			if got != tt.wantWarn {
				t.Errorf("warning logged = %v, want %v; output: %s", got, tt.wantWarn, buf.String())
			}
		})
	}
}

// TestIsLambdaEnvironment verifies Lambda environment detection logic.
func TestIsLambdaEnvironment(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	t.Setenv("_LAMBDA_SERVER_PORT", "")
	os.Unsetenv("AWS_LAMBDA_RUNTIME_API")
	os.Unsetenv("_LAMBDA_SERVER_PORT")

	if isLambdaEnvironment() {
		t.Error("isLambdaEnvironment: expected false when no Lambda env vars are set")
	}

	t.Setenv("AWS_LAMBDA_RUNTIME_API", "localhost:8080")
	if !isLambdaEnvironment() {
		t.Error("isLambdaEnvironment: expected true when AWS_LAMBDA_RUNTIME_API is set")
	}
}

// setTestEnv sets the minimal environment for a local config. It clears the
// credentials so a developer's shell does not leak into the test.
func setTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "8080")
	t.Setenv("FANOUT_MODE", "async")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("HUBSPOT_PRIVATE_APP_CLIENT_SECRET", "")
	t.Setenv("HUBSPOT_PRIVATE_APP_ACCESS_TOKEN", "")
	t.Setenv("HUBSPOT_PUBLIC_APP_CLIENT_ID", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("CRON_SECRET", "")
}
