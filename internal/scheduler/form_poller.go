// Package scheduler runs the form submissions poll pass.
//
// A pass lists every form, fetches each form's most recent submissions,
// keeps those newer than the shared watermark and relays them. The watermark
// is read once before any fetch and advanced to the pass start only after
// the pass completes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"hubrelay/internal/dedup"
	"hubrelay/internal/events"
	"hubrelay/internal/external"
	"hubrelay/internal/notifications/dispatch"
	"hubrelay/internal/relay"
	"hubrelay/internal/types"
)

// DefaultSubmissionsLimit is how many recent submissions are read per form.
const DefaultSubmissionsLimit = 5

// PollResult is the summary returned by the cron route and the poller
// Lambda.
type PollResult struct {
	Success        bool   `json:"success"`
	FormsChecked   int    `json:"formsChecked"`
	NewSubmissions int    `json:"newSubmissions"`
	CheckedAt      string `json:"checkedAt"`
}

// FormPollerConfig holds the dependencies for a FormPoller.
type FormPollerConfig struct {
	Forms     external.FormsAPI
	Pipeline  *relay.Pipeline
	Watermark *dedup.Watermark
	SinkURL   string

	// Limit is the number of submissions read per form.
	Limit int
	// Concurrency bounds parallel per-form fetches. 1 is sequential.
	Concurrency int

	Metrics dispatch.Metrics
	Clock   types.Clock
	Logger  *slog.Logger
}

// FormPoller detects form submissions the webhook path may have missed.
type FormPoller struct {
	forms       external.FormsAPI
	pipeline    *relay.Pipeline
	watermark   *dedup.Watermark
	sinkURL     string
	limit       int
	concurrency int
	metrics     dispatch.Metrics
	clock       types.Clock
	logger      *slog.Logger
}

func NewFormPoller(cfg FormPollerConfig) *FormPoller {
	p := &FormPoller{
		forms:       cfg.Forms,
		pipeline:    cfg.Pipeline,
		watermark:   cfg.Watermark,
		sinkURL:     cfg.SinkURL,
		limit:       cfg.Limit,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if p.limit <= 0 {
		p.limit = DefaultSubmissionsLimit
	}
	if p.concurrency <= 0 {
		p.concurrency = 1
	}
	if p.metrics == nil {
		p.metrics = dispatch.NoopMetrics{}
	}
	if p.clock == nil {
		p.clock = types.RealClock{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.watermark == nil {
		p.watermark = dedup.NewWatermark(p.clock.Now(), dedup.InitialLookback)
	}
	return p
}

// Poll runs one pass. Listing forms is the only fatal step; a form whose
// submissions cannot be fetched counts as having none. On error the
// watermark is left where it was.
func (p *FormPoller) Poll(ctx context.Context) (*PollResult, error) {
	passStart := p.clock.Now()
	lastCheckedAt := p.watermark.LastCheckedAt()
	ctx = types.WithDispatchSource(ctx, types.SourcePoll)

	forms, err := p.forms.ListForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}

	perForm := make([][]types.CanonicalEvent, len(forms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, form := range forms {
		g.Go(func() error {
			subs, err := p.forms.ListSubmissions(gctx, form.Key(), p.limit)
			if err != nil {
				p.logger.WarnContext(gctx, "failed to fetch form submissions",
					"form_id", form.Key(),
					"error", err,
				)
				return nil
			}
			perForm[i] = dedup.SelectNew(events.FromSubmissions(form, subs), lastCheckedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fresh []types.CanonicalEvent
	for _, evs := range perForm {
		fresh = append(fresh, evs...)
	}
	if len(fresh) > 0 {
		p.pipeline.Process(ctx, fresh, p.sinkURL)
	}

	p.watermark.Advance(passStart)
	p.metrics.RecordPollItems(ctx, len(fresh))

	p.logger.InfoContext(ctx, "poll pass complete",
		"forms_checked", len(forms),
		"new_submissions", len(fresh),
		"last_checked_at", lastCheckedAt.Format(time.RFC3339Nano),
	)

	return &PollResult{
		Success:        true,
		FormsChecked:   len(forms),
		NewSubmissions: len(fresh),
		CheckedAt:      passStart.UTC().Format("2006-01-02T15:04:05.000Z"),
	}, nil
}

// Watermark exposes the poller's watermark.
func (p *FormPoller) Watermark() *dedup.Watermark {
	return p.watermark
}
