package types

import "time"

// RelayMessage is the SQS body written by the queue fan-out and read by the
// notify worker. One message carries one event.
type RelayMessage struct {
	Event      CanonicalEvent `json:"event"`
	Source     DispatchSource `json:"source"`
	RequestID  string         `json:"request_id,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
