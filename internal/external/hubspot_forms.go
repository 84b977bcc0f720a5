package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"hubrelay/internal/types"
)

const (
	DefaultHubSpotAPIBaseURL = "https://api.hubapi.com"

	formsListPath       = "/marketing/v3/forms/"
	formSubmissionsPath = "/form-integrations/v1/submissions/forms/"

	// maxFormPages bounds the forms list walk.
	maxFormPages = 20
)

// HubSpotFormsConfig configures HubSpotFormsClient.
type HubSpotFormsConfig struct {
	BaseURL     string
	AccessToken string
	UserAgent   string
	Logger      *slog.Logger
}

// HubSpotFormsClient calls the marketing forms and form submissions APIs
// with a private app access token.
type HubSpotFormsClient struct {
	base    *BaseClient
	baseURL string
	token   string
	logger  *slog.Logger
}

func NewHubSpotFormsClient(httpClient *http.Client, cfg HubSpotFormsConfig) *HubSpotFormsClient {
	return NewHubSpotFormsClientWithBase(
		NewBaseClient(httpClient, "hubspot-forms", DefaultRetryPolicy(), cfg.UserAgent),
		cfg,
	)
}

func NewHubSpotFormsClientWithBase(base *BaseClient, cfg HubSpotFormsConfig) *HubSpotFormsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHubSpotAPIBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HubSpotFormsClient{
		base:    base,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		logger:  cfg.Logger,
	}
}

type formsListResponse struct {
	Results []types.FormRef `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

type submissionsResponse struct {
	Results []types.Submission `json:"results"`
}

// ListForms returns every form in the portal, following paging cursors.
func (c *HubSpotFormsClient) ListForms(ctx context.Context) ([]types.FormRef, error) {
	var (
		forms []types.FormRef
		after string
	)
	for page := 0; page < maxFormPages; page++ {
		q := url.Values{}
		if after != "" {
			q.Set("after", after)
		}

		var out formsListResponse
		if err := c.getJSON(ctx, formsListPath, q, "Forms list", &out); err != nil {
			return nil, err
		}
		forms = append(forms, out.Results...)

		if out.Paging == nil || out.Paging.Next == nil || out.Paging.Next.After == "" {
			return forms, nil
		}
		after = out.Paging.Next.After
	}
	c.logger.Warn("forms list truncated", "pages", maxFormPages, "forms", len(forms))
	return forms, nil
}

// ListSubmissions returns up to limit most recent submissions of a form.
func (c *HubSpotFormsClient) ListSubmissions(ctx context.Context, formKey string, limit int) ([]types.Submission, error) {
	if formKey == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "form key is required", nil)
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var out submissionsResponse
	if err := c.getJSON(ctx, formSubmissionsPath+url.PathEscape(formKey), q, "Form submissions", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// LatestSubmission returns the newest submission, or nil when the form has
// none.
func (c *HubSpotFormsClient) LatestSubmission(ctx context.Context, formKey string) (*types.Submission, error) {
	subs, err := c.ListSubmissions(ctx, formKey, 1)
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	return &subs[0], nil
}

func (c *HubSpotFormsClient) getJSON(ctx context.Context, path string, q url.Values, op string, dst any) error {
	if c.token == "" {
		return types.NewAppError(types.ErrCodeConfigMissing, "HUBSPOT_PRIVATE_APP_ACCESS_TOKEN is not set", nil)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build "+op+" request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapTransport(types.ErrCodeUpstreamCRM, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamCRM,
			fmt.Sprintf("%s error: %d", op, resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode, "body": readErrorBody(resp)})
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamCRM, "failed to decode "+op+" response", err)
	}
	return nil
}
