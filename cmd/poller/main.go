// Package main is the entrypoint for the submissions poller Lambda.
//
// An EventBridge schedule invokes it every few minutes. Each invocation runs
// one poll pass: list the account's forms, fetch their latest submissions,
// and relay the ones newer than the watermark to Slack. The watermark lives
// in the warm container, so a cold start looks back POLL_INITIAL_LOOKBACK.
//
// This file handles dependency wiring (Cold Start) and delegates all business
// logic to the internal/scheduler package (FormPoller.Poll).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"hubrelay/internal/app"
	"hubrelay/internal/scheduler"
)

// errNotConfigured is returned on every invocation when the access token or
// the Slack webhook URL is missing.
var errNotConfigured = errors.New("poller not configured: HubSpot access token and Slack webhook URL are required")

// Poller runs one pass.
type Poller interface {
	Poll(ctx context.Context) (*scheduler.PollResult, error)
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("poller Lambda initializing (cold start)", "environment", cfg.Environment)

	comps, err := app.Build(context.Background(), cfg, logger, app.Options{
		GuardOutbound: cfg.Environment != "local",
	})
	if err != nil {
		logger.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	var poller Poller
	if comps.Poller != nil {
		poller = comps.Poller
	} else {
		logger.Warn("poller disabled: missing HubSpot access token or Slack webhook URL")
	}

	lambda.Start(newHandler(poller, logger))
}

// newHandler wraps Poll for the Lambda runtime. The scheduled event carries
// no parameters.
func newHandler(poller Poller, logger *slog.Logger) func(ctx context.Context, ev events.CloudWatchEvent) (*scheduler.PollResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, ev events.CloudWatchEvent) (*scheduler.PollResult, error) {
		logger.InfoContext(ctx, "poller invoked", "event_id", ev.ID, "source", ev.Source)

		if poller == nil {
			return nil, errNotConfigured
		}

		res, err := poller.Poll(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "poll pass failed", "error", err)
			return nil, fmt.Errorf("poll pass failed: %w", err)
		}

		logger.InfoContext(ctx, "poll pass complete",
			"forms_checked", res.FormsChecked,
			"new_submissions", res.NewSubmissions,
		)
		return res, nil
	}
}
