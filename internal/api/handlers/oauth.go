package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hubrelay/internal/core"
	"hubrelay/internal/external"
	"hubrelay/internal/types"
)

const (
	routeAuthorize = "/api/auth/authorize"
	routeCallback  = "/api/auth/callback"
)

// callbackQuery is the query string HubSpot appends to the redirect.
type callbackQuery struct {
	Code             string `query:"code" validate:"required,max=1024"`
	State            string `query:"state" validate:"omitempty,max=256"`
	Error            string `query:"error"`
	ErrorDescription string `query:"error_description"`
}

// oauthErrorBody mirrors the error HubSpot passed back on the redirect.
type oauthErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"description,omitempty"`
}

// OAuthHandler runs the public app install flow. The tokens it obtains are
// shown once to the operator, who stores them as configuration. The state
// parameter is generated but not checked on return, since the service keeps
// no session store.
type OAuthHandler struct {
	client    external.OAuthAPI
	clientID  string
	validator *core.Validator
	logger    *slog.Logger
}

func NewOAuthHandler(client external.OAuthAPI, clientID string, v *core.Validator, logger *slog.Logger) *OAuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(logger)
	}
	return &OAuthHandler{client: client, clientID: clientID, validator: v, logger: logger}
}

func (h *OAuthHandler) RegisterRoutes(r chi.Router) {
	r.Get(routeAuthorize, h.Authorize)
	r.Get(routeCallback, h.Callback)
}

// Authorize redirects to the HubSpot consent screen.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	if h.clientID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeConfigMissing,
			"HUBSPOT_PUBLIC_APP_CLIENT_ID is not set", nil))
		return
	}
	state := uuid.NewString()
	target := h.client.AuthorizeURL(state, fallbackRedirect(r))
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback exchanges the authorization code and returns the token set.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := callbackQuery{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	if params.Error != "" {
		h.logger.WarnContext(r.Context(), "oauth consent denied", "error", params.Error)
		core.JSON(w, r, http.StatusBadRequest, oauthErrorBody{
			Error:       params.Error,
			Description: params.ErrorDescription,
		})
		return
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	tokens, err := h.client.ExchangeCode(r.Context(), params.Code, fallbackRedirect(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "oauth token exchange failed", "error", err)
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	core.JSON(w, r, http.StatusOK, tokens)
}

// fallbackRedirect is the callback URL on the host that served the request.
func fallbackRedirect(r *http.Request) string {
	return "https://" + r.Host + routeCallback
}
