package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/kafka"
	"github.com/NordCoder/Upwatch/internal/domain/outbox"
	"github.com/NordCoder/Upwatch/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Time to publish one outbox row, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Outbox rows that could not be published after retries.",
	}, []string{"kind"})
)

func instrument(k outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	kind := k.String()
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

// MakeGlobalOutboxHandler routes outbox kinds to their publishers. Domain
// events are stored already encoded and published as is.
func MakeGlobalOutboxHandler(pub kafka.DomainEvents, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindDomainEvent:
			base := func(ctx context.Context, data []byte) error {
				env, err := event.Unmarshal(data)
				if err != nil {
					return err
				}
				return pub.PublishEvent(ctx, env.MonitorID, data)
			}
			return instrument(kind, base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %s", kind)
		}
	}
}
