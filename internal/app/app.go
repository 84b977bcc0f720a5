// Package app wires the relay's components from a loaded Config. Every
// entrypoint (HTTP server, poller Lambda, notify worker, CLI) builds its
// graph here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"hubrelay/internal/config"
	"hubrelay/internal/core"
	"hubrelay/internal/dedup"
	"hubrelay/internal/external"
	"hubrelay/internal/notifications/dispatch"
	"hubrelay/internal/notifications/slack"
	"hubrelay/internal/queue"
	"hubrelay/internal/relay"
	"hubrelay/internal/scheduler"
	"hubrelay/internal/security"
	"hubrelay/internal/types"
)

// maxSinkRedirects bounds redirects followed on the Slack webhook call.
const maxSinkRedirects = 3

// Options adjusts wiring that differs between deployments and tests.
type Options struct {
	// GuardOutbound routes sink calls through the SSRF-guarded transport,
	// which refuses private and loopback addresses.
	GuardOutbound bool

	// Overrides for tests. Nil means build from AWS default config.
	CloudWatch dispatch.CloudWatchClient
	SQS        queue.SQSSender
}

// Components is the wired object graph.
type Components struct {
	Config *config.Config
	Logger *slog.Logger

	Sink       *external.SlackWebhookClient
	Forms      *external.HubSpotFormsClient
	OAuth      *external.HubSpotOAuthClient
	Metrics    dispatch.Metrics
	Dispatcher *dispatch.Dispatcher
	Pipeline   *relay.Pipeline
	Verifier   *security.WebhookVerifier
	Watermark  *dedup.Watermark
	Fanout     relay.Fanout

	// PollPipeline never enriches; polled events carry their own values.
	PollPipeline *relay.Pipeline

	// Poller is nil when the HubSpot token or the Slack URL is missing.
	Poller *scheduler.FormPoller
}

// Build constructs every component. AWS clients are only created when the
// configuration calls for them.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{Config: cfg, Logger: logger}

	sinkHTTP := &http.Client{Timeout: cfg.Slack.Timeout}
	if opts.GuardOutbound {
		sinkHTTP = security.NewGuardedHTTPClient(cfg.Slack.Timeout, maxSinkRedirects)
	}
	c.Sink = external.NewSlackWebhookClient(sinkHTTP, cfg.Slack.UserAgent)

	c.Forms = external.NewHubSpotFormsClient(&http.Client{Timeout: cfg.HubSpot.Timeout}, external.HubSpotFormsConfig{
		BaseURL:     cfg.HubSpot.APIBaseURL,
		AccessToken: cfg.HubSpot.AccessToken.Unmask(),
		UserAgent:   cfg.Slack.UserAgent,
		Logger:      logger,
	})

	c.OAuth = external.NewHubSpotOAuthClient(&http.Client{Timeout: cfg.HubSpot.Timeout}, external.HubSpotOAuthConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret.Unmask(),
		RedirectURI:  cfg.OAuth.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
		UserAgent:    cfg.Slack.UserAgent,
		APIBaseURL:   cfg.HubSpot.APIBaseURL,
	})

	metrics, err := buildMetrics(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	c.Metrics = metrics

	c.Dispatcher = dispatch.NewDispatcher(c.Sink, c.Metrics, logger)

	var enricher relay.Enricher = relay.NopEnricher{}
	if cfg.HubSpot.EnrichSubmissions && cfg.HubSpot.AccessToken.IsSet() {
		enricher = relay.NewSubmissionEnricher(c.Forms, logger)
	}
	slackOpts := slack.Options{
		Location:   cfg.Slack.DisplayLocation(),
		AppBaseURL: cfg.HubSpot.AppBaseURL,
	}
	c.Pipeline = relay.NewPipeline(enricher, c.Dispatcher, slackOpts, logger)
	c.PollPipeline = relay.NewPipeline(relay.NopEnricher{}, c.Dispatcher, slackOpts, logger)

	c.Verifier = security.NewWebhookVerifier(
		cfg.HubSpot.ClientSecret.Unmask(),
		cfg.HubSpot.RequireSignature,
		cfg.HubSpot.MaxRequestAge,
		logger,
	)

	clock := types.RealClock{}
	c.Watermark = dedup.NewWatermark(clock.Now(), cfg.Poller.InitialLookback)

	if cfg.HubSpot.AccessToken.IsSet() && cfg.Slack.WebhookURL.IsSet() {
		c.Poller = scheduler.NewFormPoller(scheduler.FormPollerConfig{
			Forms:       c.Forms,
			Pipeline:    c.PollPipeline,
			Watermark:   c.Watermark,
			SinkURL:     cfg.Slack.WebhookURL.Unmask(),
			Limit:       cfg.Poller.SubmissionsLimit,
			Concurrency: cfg.Poller.Concurrency,
			Metrics:     c.Metrics,
			Clock:       clock,
			Logger:      logger,
		})
	}

	fanout, err := buildFanout(ctx, cfg, c.Pipeline, logger, opts)
	if err != nil {
		return nil, err
	}
	c.Fanout = fanout

	return c, nil
}

func buildMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (dispatch.Metrics, error) {
	if !cfg.Observability.EnableMetrics {
		return dispatch.NoopMetrics{}, nil
	}
	client := opts.CloudWatch
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for metrics: %w", err)
		}
		client = cloudwatch.NewFromConfig(awsCfg)
	}
	return dispatch.NewCloudWatchMetrics(client, cfg.Observability.MetricNamespace, types.NewSlogAdapter(logger)), nil
}

func buildFanout(ctx context.Context, cfg *config.Config, p *relay.Pipeline, logger *slog.Logger, opts Options) (relay.Fanout, error) {
	if cfg.Fanout.Mode != config.FanoutQueue {
		return relay.NewAsyncFanout(p), nil
	}
	client := opts.SQS
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for fan-out queue: %w", err)
		}
		client = sqs.NewFromConfig(awsCfg)
	}
	return relay.NewQueueFanout(queue.NewEventPublisher(client, cfg.Fanout.QueueURL, logger), logger), nil
}

// HealthProbes returns the probes served on /health.
func (c *Components) HealthProbes() []core.HealthProbe {
	return []core.HealthProbe{
		core.BreakerProbe{Label: "slack_sink", State: c.Sink.BreakerState},
		core.ConfigProbe{Label: "slack_webhook_url", Value: func() string { return c.Config.Slack.WebhookURL.Unmask() }},
	}
}
