// Package queue publishes canonical events to the notify worker's SQS queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"hubrelay/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventPublisher serializes events as RelayMessages onto a single queue.
type EventPublisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

func NewEventPublisher(client SQSSender, queueURL string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		client:   client,
		queueURL: queueURL,
		clock:    types.RealClock{},
		logger:   logger,
	}
}

// Publish enqueues ev. The source and request id are taken from ctx.
func (p *EventPublisher) Publish(ctx context.Context, ev types.CanonicalEvent) error {
	msg := types.RelayMessage{
		Event:      ev,
		Source:     types.GetDispatchSource(ctx),
		RequestID:  types.GetRequestID(ctx),
		EnqueuedAt: p.clock.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal RelayMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Kind)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send RelayMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "relay message sent",
		"queue_url", p.queueURL,
		"kind", string(ev.Kind),
		"object_id", ev.ObjectID,
		"portal_id", ev.PortalID,
	)
	return nil
}

// WithClock replaces the clock stamped into EnqueuedAt.
func (p *EventPublisher) WithClock(c types.Clock) *EventPublisher {
	p.clock = c
	return p
}

// DecodeRelayMessage parses a body written by Publish.
func DecodeRelayMessage(body string) (types.RelayMessage, error) {
	var msg types.RelayMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return types.RelayMessage{}, fmt.Errorf("queue: failed to unmarshal RelayMessage: %w", err)
	}
	return msg, nil
}

