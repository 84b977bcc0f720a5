// Package dispatch delivers composed messages to the Slack sink.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hubrelay/internal/external"
	"hubrelay/internal/notifications/slack"
	"hubrelay/internal/types"
)

// DispatchError reports one failed delivery.
type DispatchError struct {
	Summary string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q: %v", e.Summary, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Result summarizes a DispatchAll call.
type Result struct {
	Sent   int
	Failed int
	Errors []error
}

// Dispatcher posts each message once. There is no retry: a failed
// notification is logged, counted and dropped.
type Dispatcher struct {
	sink    external.SinkClient
	metrics Metrics
	logger  *slog.Logger
	clock   types.Clock
}

func NewDispatcher(sink external.SinkClient, metrics Metrics, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sink: sink, metrics: metrics, logger: logger, clock: types.RealClock{}}
}

// Dispatch renders msg and posts it to sinkURL.
func (d *Dispatcher) Dispatch(ctx context.Context, msg types.ComposedMessage, sinkURL string) error {
	source := types.GetDispatchSource(ctx)
	start := d.clock.Now()

	err := d.sink.Send(ctx, sinkURL, slack.Render(msg))
	latency := d.clock.Now().Sub(start)

	if err != nil {
		d.metrics.RecordDispatch(ctx, source, types.ResultFailure, latency)
		return &DispatchError{Summary: msg.SummaryText, Err: err}
	}
	d.metrics.RecordDispatch(ctx, source, types.ResultSuccess, latency)
	d.logger.InfoContext(ctx, "notification sent",
		"summary", msg.SummaryText,
		"source", string(source),
		"latency_ms", latency.Milliseconds(),
	)
	return nil
}

// DispatchAll sends msgs in order. One failure does not stop the rest.
func (d *Dispatcher) DispatchAll(ctx context.Context, msgs []types.ComposedMessage, sinkURL string) Result {
	var res Result
	for _, msg := range msgs {
		if err := d.Dispatch(ctx, msg, sinkURL); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			d.logger.ErrorContext(ctx, "notification failed", "summary", msg.SummaryText, "error", err)
			continue
		}
		res.Sent++
	}
	return res
}

// Err joins the failures, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// WithClock replaces the clock used for latency measurement.
func (d *Dispatcher) WithClock(c types.Clock) *Dispatcher {
	d.clock = c
	return d
}

