// Package events carries the "state changed" notifications the core emits after
// each committed transaction. Delivery is someone else's job: the core only
// hands events to a Publisher.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindOrderCreated          Kind = "order.created"
	KindOrderStatusChanged    Kind = "order.status_changed"
	KindOrderDeleted          Kind = "order.deleted"
	KindRevisionRequested     Kind = "revision.requested"
	KindRevisionStatusChanged Kind = "revision.status_changed"
	KindCreditsChanged        Kind = "credits.changed"
)

// Event describes one committed change. Status carries the new status for
// order and revision events and is empty for credit events.
type Event struct {
	Kind       Kind       `json:"kind"`
	AccountID  uuid.UUID  `json:"account_id"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	RevisionID *uuid.UUID `json:"revision_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// LogPublisher writes events to a structured logger. It is the fallback when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	attrs := []any{"kind", ev.Kind, "account_id", ev.AccountID}
	if ev.OrderID != nil {
		attrs = append(attrs, "order_id", *ev.OrderID)
	}

	if ev.RevisionID != nil {
		attrs = append(attrs, "revision_id", *ev.RevisionID)
	}

	if ev.Status != "" {
		attrs = append(attrs, "status", ev.Status)
	}

	p.logger.InfoContext(ctx, "state changed", attrs...)

	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)

	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Kinds returns the kinds of the recorded events in publish order.
func (r *Recorder) Kinds() []Kind {
	evs := r.Events()
	kinds := make([]Kind, len(evs))

	for i, ev := range evs {
		kinds[i] = ev.Kind
	}

	return kinds
}

// Emit publishes ev and logs a failure instead of returning it. Events go out
// after the transaction committed, so a broker outage must not turn a
// successful operation into an error.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}

	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if err := p.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "kind", ev.Kind, "account_id", ev.AccountID, "error", err)
	}
}
