package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"hubrelay/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(&config.Config{Environment: "local"}, testLogger())
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	return srv
}

func TestNewServer_Success(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	srv, err := NewServer(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	if srv.Config != cfg {
		t.Error("Config field not set correctly")
	}
	if srv.Validator == nil {
		t.Error("Validator should be initialized")
	}
	if srv.Handler() == nil || srv.Router() == nil {
		t.Error("router should be initialized")
	}
}

func TestNewServer_NilInputs(t *testing.T) {
	if _, err := NewServer(nil, testLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestShutdown_RunsHooksInOrder(t *testing.T) {
	srv := newTestServer(t)
	var order []int
	srv.OnShutdown(func(context.Context) { order = append(order, 1) })
	srv.OnShutdown(func(context.Context) { order = append(order, 2) })

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("hooks ran as %v, want [1 2]", order)
	}
}

func TestShutdown_DeadlineExceeded(t *testing.T) {
	srv := newTestServer(t)
	release := make(chan struct{})
	defer close(release)
	srv.OnShutdown(func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(ctx); err == nil {
		t.Fatal("expected error when hooks outlive the deadline")
	}
}
