package relay

import (
	"context"
	"log/slog"

	"hubrelay/internal/events"
	"hubrelay/internal/external"
	"hubrelay/internal/types"
)

// Enricher fills in details a webhook event does not carry.
type Enricher interface {
	Enrich(ctx context.Context, ev types.CanonicalEvent) types.CanonicalEvent
}

// NopEnricher returns events unchanged.
type NopEnricher struct{}

func (NopEnricher) Enrich(_ context.Context, ev types.CanonicalEvent) types.CanonicalEvent { return ev }

// SubmissionEnricher fetches the latest submission of the event's form and
// merges its values. Webhook form events carry no field values of their
// own. Lookup failures are logged and the event is relayed as received.
//
// Events from the poll path are left alone: each already holds its own
// submission, and the form's latest one may be a different submission.
type SubmissionEnricher struct {
	forms  external.FormsAPI
	logger *slog.Logger
}

func NewSubmissionEnricher(forms external.FormsAPI, logger *slog.Logger) *SubmissionEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionEnricher{forms: forms, logger: logger}
}

func (e *SubmissionEnricher) Enrich(ctx context.Context, ev types.CanonicalEvent) types.CanonicalEvent {
	if ev.Kind != types.EventFormSubmission || ev.FormID == "" {
		return ev
	}
	if types.GetDispatchSource(ctx) == types.SourcePoll {
		return ev
	}
	sub, err := e.forms.LatestSubmission(ctx, ev.FormID)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to fetch form submission details",
			"form_id", ev.FormID,
			"error", err,
		)
		return ev
	}
	if sub == nil {
		return ev
	}
	return events.MergeSubmission(ev, *sub)
}
