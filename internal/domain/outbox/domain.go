package outbox

import (
	"context"
	"fmt"
	"time"
)

// Status is the delivery state of an outbox row. Rows stuck IN_PROGRESS past
// their TTL are picked up again.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

// Kind selects the publisher for a row.
type Kind int

const (
	// KindDomainEvent rows hold an encoded event.Envelope.
	KindDomainEvent Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindDomainEvent:
		return "domain_event"
	default:
		return fmt.Sprintf("kind_%d", int(k))
	}
}

// Message is one outbox row. The W3C trace headers captured at enqueue time
// let the dispatcher continue the producer's trace.
type Message struct {
	// Seq is the enqueue order; rows are published in it.
	Seq            int64
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Traceparent string
	Tracestate  string
	Baggage     string
}

type Repository interface {
	// Enqueue is a no-op for a key that already exists.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
	// PickBatch marks up to batch rows IN_PROGRESS and returns them in Seq
	// order. No row newer than an unexpired IN_PROGRESS row is returned.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	MarkSuccess(ctx context.Context, keys []string) error
}

type (
	KindHandler   func(ctx context.Context, data []byte) error
	GlobalHandler func(kind Kind) (KindHandler, error)
)
