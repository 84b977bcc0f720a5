package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hubrelay/internal/core"
	"hubrelay/internal/scheduler"
	"hubrelay/internal/types"
)

const routeCheckFormSubmissions = "/api/cron/check-form-submissions"

// Poller runs one poll pass.
type Poller interface {
	Poll(ctx context.Context) (*scheduler.PollResult, error)
}

// pollFailure is the body of a failed pass.
type pollFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CronHandler triggers a poll pass from an external scheduler.
type CronHandler struct {
	poller     Poller
	cronSecret string
	logger     *slog.Logger
}

// NewCronHandler returns a handler for poller. A nil poller means the
// HubSpot token or Slack URL is missing; every call then fails with 500.
func NewCronHandler(poller Poller, cronSecret string, logger *slog.Logger) *CronHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronHandler{poller: poller, cronSecret: cronSecret, logger: logger}
}

func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Get(routeCheckFormSubmissions, h.CheckFormSubmissions)
	r.Post(routeCheckFormSubmissions, h.CheckFormSubmissions)
}

// CheckFormSubmissions runs one pass and returns its summary.
func (h *CronHandler) CheckFormSubmissions(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Unauthorized", nil))
		return
	}
	if h.poller == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeConfigMissing, "Missing configuration", nil))
		return
	}

	res, err := h.poller.Poll(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "polling failed", "error", err)
		core.JSON(w, r, http.StatusInternalServerError, pollFailure{
			Error:   "Polling failed",
			Message: err.Error(),
		})
		return
	}
	core.JSON(w, r, http.StatusOK, res)
}

// authorized requires "Bearer <CRON_SECRET>" when a secret is configured.
func (h *CronHandler) authorized(r *http.Request) bool {
	if h.cronSecret == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	want := "Bearer " + h.cronSecret
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
