package external

import (
	"context"

	"hubrelay/internal/notifications/slack"
	"hubrelay/internal/types"
)

// FormsAPI reads forms and their submissions from HubSpot.
type FormsAPI interface {
	ListForms(ctx context.Context) ([]types.FormRef, error)
	ListSubmissions(ctx context.Context, formKey string, limit int) ([]types.Submission, error)
	LatestSubmission(ctx context.Context, formKey string) (*types.Submission, error)
}

// OAuthAPI performs the HubSpot public app token exchanges.
type OAuthAPI interface {
	AuthorizeURL(state, fallbackRedirect string) string
	ExchangeCode(ctx context.Context, code, fallbackRedirect string) (*TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// SinkClient posts a rendered payload to a Slack incoming webhook.
type SinkClient interface {
	Send(ctx context.Context, webhookURL string, payload slack.Payload) error
}

// TokenSet is the token endpoint response.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
