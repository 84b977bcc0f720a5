package types

import (
	"encoding/json"
	"time"
)

// EventKind identifies the business event a CanonicalEvent represents.
type EventKind string

const (
	EventFormSubmission EventKind = "form_submission"
	EventContactCreated EventKind = "contact_created"
)

// Subscription types sent by HubSpot webhook subscriptions that the relay
// recognizes. Anything else is dropped during normalization.
const (
	SubscriptionObjectCreation  = "object.creation"
	SubscriptionContactCreation = "contact.creation"
	SubscriptionFormSubmission  = "form_submission.v2"
)

// ContactObjectTypeID is the HubSpot object type id for contacts. Generic
// object.creation events for other object types are ignored.
const ContactObjectTypeID = "0-1"

// CanonicalEvent is the source-agnostic record every relay path operates on
// after normalization. OccurredAt is a CRM-assigned timestamp in epoch
// milliseconds unless ApproximateTime is set, in which case it is the
// receipt time.
type CanonicalEvent struct {
	Kind            EventKind `json:"kind"`
	OccurredAt      int64     `json:"occurred_at"`
	PortalID        int64     `json:"portal_id"`
	ObjectID        string    `json:"object_id"`
	FormID          string    `json:"form_id,omitempty"`
	DisplayName     *string   `json:"display_name,omitempty"`
	PageURL         *string   `json:"page_url,omitempty"`
	Fields          FieldSet  `json:"fields"`
	ApproximateTime bool      `json:"approximate_time,omitempty"`
}

// OccurredTime returns OccurredAt as a time.Time in UTC.
func (e CanonicalEvent) OccurredTime() time.Time {
	return time.UnixMilli(e.OccurredAt).UTC()
}

// RecordID returns the id used to build links back to the CRM record: the
// form id for submissions when known, otherwise the object id.
func (e CanonicalEvent) RecordID() string {
	if e.Kind == EventFormSubmission && e.FormID != "" {
		return e.FormID
	}
	return e.ObjectID
}

// Field is one name/value pair of a FieldSet.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldSet is an insertion-ordered mapping of field name to value with unique
// names. Setting an existing name replaces its value in place.
type FieldSet struct {
	fields []Field
	index  map[string]int
}

// NewFieldSet builds a FieldSet from pairs. Duplicate names keep the position
// of their first occurrence and the value of their last.
func NewFieldSet(pairs ...Field) FieldSet {
	var fs FieldSet
	for _, p := range pairs {
		fs.Set(p.Name, p.Value)
	}
	return fs
}

// Set inserts or replaces the value for name.
func (fs *FieldSet) Set(name, value string) {
	if fs.index == nil {
		fs.index = make(map[string]int)
	}
	if i, ok := fs.index[name]; ok {
		fs.fields[i].Value = value
		return
	}
	fs.index[name] = len(fs.fields)
	fs.fields = append(fs.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (fs FieldSet) Get(name string) (string, bool) {
	i, ok := fs.index[name]
	if !ok {
		return "", false
	}
	return fs.fields[i].Value, true
}

// Len returns the number of distinct field names.
func (fs FieldSet) Len() int {
	return len(fs.fields)
}

// Fields returns a copy of the pairs in insertion order.
func (fs FieldSet) Fields() []Field {
	out := make([]Field, len(fs.fields))
	copy(out, fs.fields)
	return out
}

// MarshalJSON encodes the set as an ordered array of pairs so that ordering
// survives queue hops.
func (fs FieldSet) MarshalJSON() ([]byte, error) {
	if fs.fields == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(fs.fields)
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (fs *FieldSet) UnmarshalJSON(data []byte) error {
	var pairs []Field
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	*fs = NewFieldSet(pairs...)
	return nil
}

// SignatureHeaders carries the HubSpot signature related request headers.
type SignatureHeaders struct {
	Signature        string
	SignatureVersion string
	Timestamp        string

	// HasV3Header is set only when X-HubSpot-Signature-v3 itself was present.
	// A version header alone does not make a request v3.
	HasV3Header bool
}

// WebhookEnvelope is one inbound webhook HTTP call, captured before any
// parsing. It is never mutated after construction.
type WebhookEnvelope struct {
	RawBody []byte
	Method  string
	URL     string
	Headers SignatureHeaders
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
