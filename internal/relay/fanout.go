package relay

import (
	"context"
	"log/slog"
	"sync"

	"hubrelay/internal/types"
)

// Fanout hands events off after the webhook request has been acknowledged.
// Implementations never report errors to the caller.
type Fanout interface {
	Fanout(ctx context.Context, evs []types.CanonicalEvent, sinkURL string)
}

// AsyncFanout processes events on a goroutine detached from the request
// context. On Lambda the execution environment may freeze once the response
// is written, so production deployments there use QueueFanout.
type AsyncFanout struct {
	pipeline *Pipeline
	wg       sync.WaitGroup
}

func NewAsyncFanout(p *Pipeline) *AsyncFanout {
	return &AsyncFanout{pipeline: p}
}

func (f *AsyncFanout) Fanout(ctx context.Context, evs []types.CanonicalEvent, sinkURL string) {
	if len(evs) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.pipeline.Process(detached, evs, sinkURL)
	}()
}

// Wait blocks until every started batch has finished. Called on shutdown.
func (f *AsyncFanout) Wait() {
	f.wg.Wait()
}

// Publisher enqueues one event.
type Publisher interface {
	Publish(ctx context.Context, ev types.CanonicalEvent) error
}

// QueueFanout publishes each event for the notify worker. The sink URL is
// not carried; the worker reads its own configuration.
type QueueFanout struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewQueueFanout(p Publisher, logger *slog.Logger) *QueueFanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueFanout{publisher: p, logger: logger}
}

func (f *QueueFanout) Fanout(ctx context.Context, evs []types.CanonicalEvent, _ string) {
	ctx = context.WithoutCancel(ctx)
	for _, ev := range evs {
		if err := f.publisher.Publish(ctx, ev); err != nil {
			f.logger.ErrorContext(ctx, "failed to enqueue event",
				"kind", string(ev.Kind),
				"object_id", ev.ObjectID,
				"error", err,
			)
		}
	}
}
