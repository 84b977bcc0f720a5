package security

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hubrelay/internal/types"
)

// WebhookVerifier applies the signature check and, for v3 requests, the
// replay window. It is built once per process from configuration.
type WebhookVerifier struct {
	Secret           string
	RequireSignature bool
	MaxAge           time.Duration
	Clock            types.Clock
	Logger           *slog.Logger
}

// NewWebhookVerifier returns a verifier with the default replay window.
func NewWebhookVerifier(secret string, requireSignature bool, maxAge time.Duration, logger *slog.Logger) *WebhookVerifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxRequestAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookVerifier{
		Secret:           secret,
		RequireSignature: requireSignature,
		MaxAge:           maxAge,
		Clock:            types.RealClock{},
		Logger:           logger,
	}
}

// Check returns nil when env may be processed, or an auth AppError.
func (v *WebhookVerifier) Check(env types.WebhookEnvelope) error {
	scheme := SelectScheme(env.Headers)
	result := Verify(env, v.Secret)

	switch result {
	case Rejected:
		v.Logger.Warn("webhook signature rejected", "scheme", scheme.String())
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "Invalid signature", nil)
	case Skipped:
		switch {
		case v.Secret == "":
			v.Logger.Debug("signature check skipped: no client secret configured", "scheme", scheme.String())
		case v.RequireSignature:
			v.Logger.Warn("unsigned webhook rejected")
			return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "Missing signature", nil)
		default:
			v.Logger.Warn("signature check skipped: request carries no signature header")
		}
		return nil
	}

	if scheme == SchemeV3 && !IsFresh(env.Headers.Timestamp, v.Clock.Now(), v.MaxAge) {
		v.Logger.Warn("webhook request expired", "timestamp", env.Headers.Timestamp)
		return types.NewAppError(types.ErrCodeAuthRequestExpired, "Request expired", nil)
	}
	return nil
}

// RequestURL rebuilds the URL HubSpot signed. publicBase overrides the
// scheme and host when the service runs behind a proxy or function URL.
func RequestURL(r *http.Request, publicBase string) string {
	uri := r.URL.RequestURI()
	if publicBase != "" {
		return strings.TrimRight(publicBase, "/") + uri
	}
	return "https://" + r.Host + uri
}

// EnvelopeFromRequest captures r and its already-read body.
func EnvelopeFromRequest(r *http.Request, body []byte, publicBase string) types.WebhookEnvelope {
	return types.WebhookEnvelope{
		RawBody: body,
		Method:  r.Method,
		URL:     RequestURL(r, publicBase),
		Headers: HeadersFromRequest(r.Header),
	}
}
