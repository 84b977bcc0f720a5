package slack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the body posted to a Slack incoming webhook.
type Payload struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

// Block is a single Block Kit block.
type Block struct {
	Type     string    `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	Fields   []*Text   `json:"fields,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Text is a Block Kit text composition object.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Element is a context or actions element. Context elements are text
// objects; buttons carry a nested text object and a URL.
type Element struct {
	Type string `json:"type"`
	Text any    `json:"text"`
	URL  string `json:"url,omitempty"`
}

// knownSoftErrors are plain-text bodies Slack returns with a 2xx status.
var knownSoftErrors = map[string]struct{}{
	"no_text":              {},
	"no_service":           {},
	"channel_not_found":    {},
	"channel_is_archived":  {},
	"invalid_payload":      {},
	"invalid_token":        {},
	"action_prohibited":    {},
	"too_many_attachments": {},
}

// ValidateResponse detects failures Slack reports with a 2xx status, either
// as {"ok":false,"error":...} or as a bare error token.
func ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", statusCode)
	}

	s := strings.TrimSpace(string(body))
	if s == "" || s == "ok" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	if _, ok := knownSoftErrors[s]; ok {
		return fmt.Errorf("slack: API error: %s", s)
	}
	return nil
}
