package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hubrelay/internal/types"
)

const (
	DefaultHubSpotAuthorizeURL = "https://app.hubspot.com/oauth/authorize"
	oauthTokenPath             = "/oauth/v1/token"
)

// DefaultOAuthScopes matches the scopes configured on the public app.
var DefaultOAuthScopes = []string{"oauth", "crm.objects.contacts.read", "crm.objects.contacts.write", "forms"}

// HubSpotOAuthConfig configures HubSpotOAuthClient.
type HubSpotOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UserAgent    string

	// Overridable for tests.
	APIBaseURL   string
	AuthorizeURL string
}

// HubSpotOAuthClient implements the public app authorization code flow.
type HubSpotOAuthClient struct {
	base *BaseClient
	cfg  HubSpotOAuthConfig
}

func NewHubSpotOAuthClient(httpClient *http.Client, cfg HubSpotOAuthConfig) *HubSpotOAuthClient {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultHubSpotAPIBaseURL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultHubSpotAuthorizeURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultOAuthScopes
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	base := NewBaseClient(httpClient, "hubspot-oauth", RetryPolicy{
		MaxRetries: 1,
		MinWait:    500 * time.Millisecond,
		MaxWait:    3 * time.Second,
	}, cfg.UserAgent)
	return &HubSpotOAuthClient{base: base, cfg: cfg}
}

func (c *HubSpotOAuthClient) redirect(fallback string) string {
	if c.cfg.RedirectURI != "" {
		return c.cfg.RedirectURI
	}
	return fallback
}

// AuthorizeURL returns the consent screen URL for state. fallbackRedirect
// is used when no redirect URI is configured.
func (c *HubSpotOAuthClient) AuthorizeURL(state, fallbackRedirect string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.redirect(fallbackRedirect))
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("state", state)
	return c.cfg.AuthorizeURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens. The redirect URI
// must match the one used for AuthorizeURL.
func (c *HubSpotOAuthClient) ExchangeCode(ctx context.Context, code, fallbackRedirect string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", c.redirect(fallbackRedirect))
	form.Set("code", code)
	return c.token(ctx, "Token exchange", form)
}

// RefreshToken trades a refresh token for a new access token.
func (c *HubSpotOAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", refreshToken)
	return c.token(ctx, "Token refresh", form)
}

func (c *HubSpotOAuthClient) token(ctx context.Context, op string, form url.Values) (*TokenSet, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, types.NewAppError(types.ErrCodeConfigMissing, "OAuth credentials are not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+oauthTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, wrapTransport(types.ErrCodeUpstreamOAuth, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth,
			fmt.Sprintf("%s failed: %d - %s", op, resp.StatusCode, readErrorBody(resp)), nil)
	}

	var ts TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&ts); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "failed to decode token response", err)
	}
	if ts.AccessToken == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "token response has no access_token", nil)
	}
	return &ts, nil
}
