package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/outbox"
)

// Events stores detector events in the outbox as JSON envelopes. Each
// envelope gets a fresh id that doubles as the outbox idempotency key.
type Events struct{ R outbox.Repository }

func (e Events) Enqueue(ctx context.Context, evs []event.Event, at time.Time) error {
	for _, ev := range evs {
		env := event.NewEnvelope(uuid.NewString(), ev, at)
		b, err := env.Marshal()
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Kind, err)
		}
		if err := e.R.Enqueue(ctx, env.ID, outbox.KindDomainEvent, b); err != nil {
			return fmt.Errorf("outbox enqueue %s: %w", ev.Kind, err)
		}
	}
	return nil
}
