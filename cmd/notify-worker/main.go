// Package main is the entrypoint for the notify worker Lambda.
//
// With FANOUT_MODE=queue the API acknowledges HubSpot and enqueues one
// RelayMessage per event instead of posting to Slack from a detached
// goroutine. This worker consumes that queue and runs each event through the
// same enrich, compose and dispatch pipeline.
//
// Cold Start (main):
//  1. Load configuration (SSM pointers resolved outside local).
//  2. Initialize structured logger.
//  3. Wire the relay pipeline and Slack sink.
//  4. Register handler and call lambda.Start.
//
// Delivery is at most once. A failed Slack post is logged and the message is
// still acknowledged; a redelivery would double-post the ones that succeeded
// within the same batch.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"hubrelay/internal/app"
	"hubrelay/internal/notifications/dispatch"
	"hubrelay/internal/queue"
	"hubrelay/internal/types"
)

// Processor runs events through enrichment, composition and dispatch.
type Processor interface {
	Process(ctx context.Context, evs []types.CanonicalEvent, sinkURL string) dispatch.Result
}

// Handler holds the dependencies for the notify worker.
type Handler struct {
	processor Processor
	sinkURL   string
	logger    *slog.Logger
	clock     types.Clock
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("notify worker initializing (cold start)", "environment", cfg.Environment)

	comps, err := app.Build(context.Background(), cfg, logger, app.Options{
		GuardOutbound: cfg.Environment != "local",
	})
	if err != nil {
		logger.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	h := &Handler{
		processor: comps.Pipeline,
		sinkURL:   cfg.Slack.WebhookURL.Unmask(),
		logger:    logger,
		clock:     types.RealClock{},
	}
	lambda.Start(h.Handle)
}

// Handle processes a batch. Every record is acknowledged.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	if h.sinkURL == "" {
		h.logger.ErrorContext(ctx, "dropping batch: Slack webhook URL is not configured",
			"records", len(sqsEvent.Records),
		)
		return events.SQSEventResponse{}, nil
	}

	for _, record := range sqsEvent.Records {
		h.processRecord(ctx, record)
	}
	return events.SQSEventResponse{}, nil
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) {
	msg, err := queue.DecodeRelayMessage(record.Body)
	if err != nil {
		// Permanent parse failure; redelivery cannot fix it.
		h.logger.ErrorContext(ctx, "discarding malformed relay message",
			"message_id", record.MessageId,
			"error", err,
		)
		return
	}

	logger := h.logger.With(
		"message_id", record.MessageId,
		"object_id", msg.Event.ObjectID,
		"kind", string(msg.Event.Kind),
		"request_id", msg.RequestID,
	)

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if t, err := parseMillisTimestamp(sent); err == nil {
			logger.DebugContext(ctx, "queue lag", "lag_ms", h.clock.Now().Sub(t).Milliseconds())
		}
	}

	source := msg.Source
	if source == "" {
		source = types.SourceWebhook
	}
	ctx = types.WithDispatchSource(ctx, source)
	if msg.RequestID != "" {
		ctx = types.WithRequestID(ctx, msg.RequestID)
	}

	res := h.processor.Process(ctx, []types.CanonicalEvent{msg.Event}, h.sinkURL)
	if err := res.Err(); err != nil {
		logger.WarnContext(ctx, "relay message not delivered", "error", err)
		return
	}
	logger.InfoContext(ctx, "relay message delivered", "sent", res.Sent)
}

// parseMillisTimestamp parses an SQS SentTimestamp (epoch milliseconds).
func parseMillisTimestamp(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
