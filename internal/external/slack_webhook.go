package external

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"hubrelay/internal/notifications/slack"
	"hubrelay/internal/types"
)

// maxSinkResponse bounds how much of Slack's reply is read for soft-failure
// detection.
const maxSinkResponse = 4096

// SlackWebhookClient posts Block Kit payloads to incoming webhooks. It never
// retries: a failed notification is logged and dropped.
type SlackWebhookClient struct {
	base *BaseClient
}

func NewSlackWebhookClient(httpClient *http.Client, userAgent string) *SlackWebhookClient {
	return &SlackWebhookClient{
		base: NewBaseClient(httpClient, "slack-webhook", NoRetryPolicy(), userAgent),
	}
}

func NewSlackWebhookClientWithBase(base *BaseClient) *SlackWebhookClient {
	return &SlackWebhookClient{base: base}
}

// BreakerState exposes the sink breaker for health checks.
func (c *SlackWebhookClient) BreakerState() string { return c.base.BreakerState() }

// Send posts payload once. Non-2xx replies and 2xx soft failures are errors.
func (c *SlackWebhookClient) Send(ctx context.Context, webhookURL string, payload slack.Payload) error {
	if webhookURL == "" {
		return types.NewAppError(types.ErrCodeConfigMissing, "SLACK_WEBHOOK_URL is not set", nil)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode Slack payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build Slack request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapTransport(types.ErrCodeUpstreamSink, "Slack webhook", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxSinkResponse))
	if err := slack.ValidateResponse(resp.StatusCode, reply); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamSink, "Slack rejected the notification", err,
			map[string]any{"status": resp.StatusCode})
	}
	return nil
}
