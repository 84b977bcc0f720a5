// Package events turns HubSpot webhook bodies and polled form submissions
// into CanonicalEvents.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"hubrelay/internal/types"
)

var validate = validator.New()

// subscriptionEvent is one element of a HubSpot webhook body. Only the
// members the relay reads are declared.
type subscriptionEvent struct {
	SubscriptionType string      `json:"subscriptionType"`
	PortalID         *int64      `json:"portalId" validate:"required"`
	ObjectID         flexibleID  `json:"objectId" validate:"required"`
	ObjectTypeID     string      `json:"objectTypeId"`
	OccurredAt       *int64      `json:"occurredAt"`
	FormID           string      `json:"formId"`
	FormName         string      `json:"formName"`
	PageURL          string      `json:"pageUrl"`
}

// flexibleID accepts both JSON numbers and strings. Numbers are kept in
// base-10 form.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("objectId: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexibleID(n.String())
	return nil
}

// kindOf maps a subscription to an event kind. ok is false for anything the
// relay does not notify on.
func kindOf(e subscriptionEvent) (types.EventKind, bool) {
	switch e.SubscriptionType {
	case types.SubscriptionFormSubmission:
		return types.EventFormSubmission, true
	case types.SubscriptionContactCreation:
		return types.EventContactCreated, true
	case types.SubscriptionObjectCreation:
		if e.ObjectTypeID == "" || e.ObjectTypeID == types.ContactObjectTypeID {
			return types.EventContactCreated, true
		}
	}
	return "", false
}

// FromWebhookBody parses a webhook body holding either a JSON array of
// subscription events or a single one. Unrecognized subscriptions are
// dropped. A recognized entry without portalId or objectId fails the whole
// body.
func FromWebhookBody(raw []byte, receivedAt time.Time) ([]types.CanonicalEvent, error) {
	elems, err := splitBody(raw)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "Malformed webhook body", err)
	}

	out := make([]types.CanonicalEvent, 0, len(elems))
	for i, elem := range elems {
		var se subscriptionEvent
		if err := json.Unmarshal(elem, &se); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON,
				"Malformed webhook event", err, map[string]any{"index": i})
		}

		kind, ok := kindOf(se)
		if !ok {
			continue
		}
		if err := validate.Struct(se); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"Webhook event is missing required fields", err, map[string]any{"index": i, "fields": missingFields(err)})
		}

		ev := types.CanonicalEvent{
			Kind:       kind,
			PortalID:   *se.PortalID,
			ObjectID:   string(se.ObjectID),
			OccurredAt: receivedAt.UnixMilli(),
		}
		if se.OccurredAt != nil {
			ev.OccurredAt = *se.OccurredAt
		} else {
			ev.ApproximateTime = true
		}
		if kind == types.EventFormSubmission {
			ev.FormID = se.FormID
			ev.DisplayName = types.StringPtr(se.FormName)
			ev.PageURL = types.StringPtr(se.PageURL)
		}
		out = append(out, ev)
	}
	return out, nil
}

func splitBody(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, err
		}
		return elems, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("body is neither an object nor an array")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid JSON object")
	}
	return []json.RawMessage{trimmed}, nil
}

func missingFields(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return names
}

// FromSubmissions builds one FormSubmission event per polled record. The
// form key stands in for both object and form id, since the submissions API
// does not expose a per-submission id.
func FromSubmissions(form types.FormRef, subs []types.Submission) []types.CanonicalEvent {
	out := make([]types.CanonicalEvent, 0, len(subs))
	for _, s := range subs {
		out = append(out, types.CanonicalEvent{
			Kind:        types.EventFormSubmission,
			OccurredAt:  s.SubmittedAt,
			PortalID:    s.PortalID,
			ObjectID:    form.Key(),
			FormID:      form.Key(),
			DisplayName: types.StringPtr(form.Name),
			PageURL:     types.StringPtr(s.PageURL),
			Fields:      types.NewFieldSet(s.Values...),
		})
	}
	return out
}

// MergeSubmission overlays a fetched submission on a webhook event: fields
// are taken from the submission, which also supplies the exact time and
// page URL when present.
func MergeSubmission(ev types.CanonicalEvent, s types.Submission) types.CanonicalEvent {
	ev.Fields = types.NewFieldSet(s.Values...)
	if s.SubmittedAt > 0 {
		ev.OccurredAt = s.SubmittedAt
		ev.ApproximateTime = false
	}
	if s.PageURL != "" {
		ev.PageURL = types.StringPtr(s.PageURL)
	}
	return ev
}
