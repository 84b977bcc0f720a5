// Package handlers contains the HTTP handlers of the relay.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hubrelay/internal/core"
	"hubrelay/internal/events"
	"hubrelay/internal/relay"
	"hubrelay/internal/security"
	"hubrelay/internal/types"
)

// Webhook routes. The specific routes accept only their own event kind so a
// subscription pointed at the wrong URL does not double up notifications.
const (
	routeFormSubmitted  = "/api/webhook/form-submitted"
	routeContactCreated = "/api/webhook/contact-created"
	routeHubSpot        = "/api/webhook/hubspot"
)

// WebhookHandler receives HubSpot webhook calls. It answers as soon as the
// request is verified and parsed, then hands the events to the fan-out.
// HubSpot expects a reply within five seconds.
type WebhookHandler struct {
	verifier      *security.WebhookVerifier
	fanout        relay.Fanout
	sinkURL       string
	publicBaseURL string
	clock         types.Clock
	logger        *slog.Logger
}

// WebhookConfig holds the settings WebhookHandler reads per request.
type WebhookConfig struct {
	SinkURL       string
	PublicBaseURL string
}

func NewWebhookHandler(verifier *security.WebhookVerifier, fanout relay.Fanout, cfg WebhookConfig, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		verifier:      verifier,
		fanout:        fanout,
		sinkURL:       cfg.SinkURL,
		publicBaseURL: cfg.PublicBaseURL,
		clock:         types.RealClock{},
		logger:        logger,
	}
}

// WithClock overrides the receipt clock.
func (h *WebhookHandler) WithClock(c types.Clock) *WebhookHandler {
	h.clock = c
	return h
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	for path, kind := range map[string]types.EventKind{
		routeFormSubmitted:  types.EventFormSubmission,
		routeContactCreated: types.EventContactCreated,
		routeHubSpot:        "",
	} {
		r.Get(path, h.Ping)
		r.Post(path, h.receive(kind))
	}
}

// Ping answers HubSpot's endpoint check.
func (h *WebhookHandler) Ping(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// receive builds the POST handler. An empty kind accepts all of them.
func (h *WebhookHandler) receive(only types.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		receivedAt := h.clock.Now()

		if h.sinkURL == "" {
			h.logger.ErrorContext(ctx, "SLACK_WEBHOOK_URL is not set")
			core.Error(w, r, types.NewAppError(types.ErrCodeConfigMissing, "Missing configuration", nil))
			return
		}

		body, err := core.ReadBody(w, r)
		if err != nil {
			core.Error(w, r, err)
			return
		}

		env := security.EnvelopeFromRequest(r, body, h.publicBaseURL)
		if err := h.verifier.Check(env); err != nil {
			core.Error(w, r, err)
			return
		}

		evs, err := events.FromWebhookBody(body, receivedAt)
		if err != nil {
			h.logger.WarnContext(ctx, "rejected webhook body", "error", err)
			core.Error(w, r, err)
			return
		}
		evs = filterKind(evs, only)

		core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})

		h.logger.InfoContext(ctx, "webhook accepted", "path", r.URL.Path, "events", len(evs))
		h.fanout.Fanout(types.WithDispatchSource(ctx, types.SourceWebhook), evs, h.sinkURL)
	}
}

func filterKind(evs []types.CanonicalEvent, only types.EventKind) []types.CanonicalEvent {
	if only == "" {
		return evs
	}
	out := evs[:0]
	for _, ev := range evs {
		if ev.Kind == only {
			out = append(out, ev)
		}
	}
	return out
}
