// Package relay turns canonical events into delivered notifications, either
// inline or detached from the request that produced them.
package relay

import (
	"context"
	"log/slog"

	"hubrelay/internal/notifications/dispatch"
	"hubrelay/internal/notifications/slack"
	"hubrelay/internal/types"
)

// Pipeline enriches, composes and dispatches events in order.
type Pipeline struct {
	enricher   Enricher
	dispatcher *dispatch.Dispatcher
	opts       slack.Options
	logger     *slog.Logger
}

func NewPipeline(enricher Enricher, dispatcher *dispatch.Dispatcher, opts slack.Options, logger *slog.Logger) *Pipeline {
	if enricher == nil {
		enricher = NopEnricher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{enricher: enricher, dispatcher: dispatcher, opts: opts, logger: logger}
}

// Process delivers one notification per event to sinkURL. A failed event
// does not stop the others.
func (p *Pipeline) Process(ctx context.Context, evs []types.CanonicalEvent, sinkURL string) dispatch.Result {
	msgs := make([]types.ComposedMessage, 0, len(evs))
	for _, ev := range evs {
		ev = p.enricher.Enrich(ctx, ev)
		msgs = append(msgs, slack.Compose(ev, p.opts))
	}
	res := p.dispatcher.DispatchAll(ctx, msgs, sinkURL)
	if len(evs) > 0 {
		p.logger.InfoContext(ctx, "relay batch processed",
			"source", string(types.GetDispatchSource(ctx)),
			"events", len(evs),
			"sent", res.Sent,
			"failed", res.Failed,
		)
	}
	return res
}
