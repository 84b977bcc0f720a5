package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"hubrelay/internal/scheduler"
)

type mockPoller struct {
	result *scheduler.PollResult
	err    error
	calls  int
}

func (m *mockPoller) Poll(context.Context) (*scheduler.PollResult, error) {
	m.calls++
	return m.result, m.err
}

func TestHandler_ReturnsPassSummary(t *testing.T) {
	p := &mockPoller{result: &scheduler.PollResult{
		Success:        true,
		FormsChecked:   3,
		NewSubmissions: 2,
		CheckedAt:      "2023-11-14T22:13:20.000Z",
	}}
	h := newHandler(p, nil)

	res, err := h(context.Background(), events.CloudWatchEvent{ID: "evt-1", Source: "aws.events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("Poll called %d times, want 1", p.calls)
	}
	if res.FormsChecked != 3 || res.NewSubmissions != 2 {
		t.Errorf("got %+v", res)
	}
}

func TestHandler_WrapsPollError(t *testing.T) {
	boom := errors.New("list forms: 401")
	h := newHandler(&mockPoller{err: boom}, nil)

	_, err := h(context.Background(), events.CloudWatchEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped poll error, got %v", err)
	}
}

func TestHandler_NotConfigured(t *testing.T) {
	h := newHandler(nil, nil)

	_, err := h(context.Background(), events.CloudWatchEvent{})
	if !errors.Is(err, errNotConfigured) {
		t.Fatalf("expected errNotConfigured, got %v", err)
	}
}
