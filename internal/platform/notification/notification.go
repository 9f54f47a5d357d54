// Package notification delivers operator-facing events from the imaging
// pipeline. Delivery is fire-and-forget: a failed or slow notification never
// blocks or fails the operation that produced it.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one operator-facing occurrence worth surfacing.
type Event struct {
	Kind       string            `json:"kind"`
	Subject    string            `json:"subject"`
	OccurredAt time.Time         `json:"occurred_at"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Event kinds emitted by the imaging pipeline.
const (
	KindUnmatchedStudy   = "imaging.unmatched_study"
	KindUnmatchedImage   = "imaging.unmatched_image"
	KindAssignmentFailed = "imaging.assignment_failed"
)

// Sink delivers events to a channel (chat webhook, email digest, ...).
type Sink interface {
	Deliver(ctx context.Context, evt Event) error
}

// Notifier fans events out to its sinks asynchronously.
type Notifier struct {
	logger zerolog.Logger
	sinks  []Sink
	queue  chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Notifier and starts its delivery worker.
func New(logger zerolog.Logger, sinks ...Sink) *Notifier {
	n := &Notifier{
		logger: logger,
		sinks:  sinks,
		queue:  make(chan Event, 64),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for evt := range n.queue {
		for _, sink := range n.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := sink.Deliver(ctx, evt); err != nil {
				n.logger.Warn().Err(err).Str("kind", evt.Kind).Msg("notification delivery failed")
			}
			cancel()
		}
	}
}

// Notify enqueues an event. If the queue is full the event is dropped and
// logged rather than blocking the caller.
func (n *Notifier) Notify(evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	select {
	case n.queue <- evt:
	default:
		n.logger.Warn().Str("kind", evt.Kind).Msg("notification queue full, event dropped")
	}
}

// Close drains pending events and stops the worker.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.queue) })
	n.wg.Wait()
}

// LogSink writes events to the service log. It is the default sink when no
// outbound channel is configured.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Deliver(_ context.Context, evt Event) error {
	e := s.Logger.Info().Str("kind", evt.Kind).Str("subject", evt.Subject)
	for k, v := range evt.Fields {
		e = e.Str(k, v)
	}
	e.Msg("operator notification")
	return nil
}
