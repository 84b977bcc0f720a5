package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubrelay/internal/notifications/dispatch"
	"hubrelay/internal/types"
)

type processCall struct {
	evs       []types.CanonicalEvent
	sinkURL   string
	source    types.DispatchSource
	requestID string
}

type mockProcessor struct {
	calls  []processCall
	result dispatch.Result
}

func (m *mockProcessor) Process(ctx context.Context, evs []types.CanonicalEvent, sinkURL string) dispatch.Result {
	m.calls = append(m.calls, processCall{
		evs:       evs,
		sinkURL:   sinkURL,
		source:    types.GetDispatchSource(ctx),
		requestID: types.GetRequestID(ctx),
	})
	return m.result
}

func newTestHandler(p Processor, sinkURL string) *Handler {
	return &Handler{
		processor: p,
		sinkURL:   sinkURL,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:     types.FixedClock{T: time.UnixMilli(1700000001000)},
	}
}

func relayBody(t *testing.T, msg types.RelayMessage) string {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(b)
}

func TestHandle_ProcessesEachRecord(t *testing.T) {
	p := &mockProcessor{result: dispatch.Result{Sent: 1}}
	h := newTestHandler(p, "https://hooks.slack.com/services/T/B/X")

	ev1 := types.CanonicalEvent{Kind: types.EventContactCreated, PortalID: 111, ObjectID: "1", OccurredAt: 1700000000000}
	ev2 := types.CanonicalEvent{Kind: types.EventFormSubmission, PortalID: 111, ObjectID: "2", FormID: "f-1", OccurredAt: 1700000000500}

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: relayBody(t, types.RelayMessage{Event: ev1, Source: types.SourceWebhook, RequestID: "req-1"}),
			Attributes: map[string]string{"SentTimestamp": "1700000000900"}},
		{MessageId: "m2", Body: relayBody(t, types.RelayMessage{Event: ev2})},
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	require.Len(t, p.calls, 2)
	assert.Equal(t, "1", p.calls[0].evs[0].ObjectID)
	assert.Equal(t, types.SourceWebhook, p.calls[0].source)
	assert.Equal(t, "req-1", p.calls[0].requestID)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", p.calls[0].sinkURL)

	assert.Equal(t, "f-1", p.calls[1].evs[0].FormID)
	assert.Equal(t, types.SourceWebhook, p.calls[1].source, "missing source defaults to webhook")
}

func TestHandle_MalformedBodyIsAcknowledged(t *testing.T) {
	p := &mockProcessor{}
	h := newTestHandler(p, "https://hooks.slack.com/services/T/B/X")

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad", Body: "{not json"},
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, p.calls)
}

func TestHandle_DeliveryFailureIsAcknowledged(t *testing.T) {
	p := &mockProcessor{result: dispatch.Result{Failed: 1, Errors: []error{errors.New("slack 500")}}}
	h := newTestHandler(p, "https://hooks.slack.com/services/T/B/X")

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: relayBody(t, types.RelayMessage{Event: types.CanonicalEvent{Kind: types.EventContactCreated, ObjectID: "1"}})},
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Len(t, p.calls, 1)
}

func TestHandle_NoSinkDropsBatch(t *testing.T) {
	p := &mockProcessor{}
	h := newTestHandler(p, "")

	_, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: relayBody(t, types.RelayMessage{})},
	}})
	require.NoError(t, err)
	assert.Empty(t, p.calls)
}

func TestParseMillisTimestamp(t *testing.T) {
	got, err := parseMillisTimestamp("1700000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), got.UnixMilli())

	_, err = parseMillisTimestamp("yesterday")
	assert.Error(t, err)
}
