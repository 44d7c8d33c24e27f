package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max and spreads the result by
// ±Jitter.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	attempt = max(attempt, 0)
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	// OnExhaust runs with the final error when Do gives up, whether attempts
	// ran out or the error was not retryable.
	OnExhaust func(lastErr error)
}

var (
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Calls made under a retry policy, first call included.",
	}, []string{"name"})
	retryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_outcomes_total",
		Help: "Finished retry.Do calls by outcome: ok, permanent, exhausted or canceled.",
	}, []string{"name", "outcome"})
	retryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retry_duration_seconds",
		Help:    "Total time spent inside retry.Do, backoff included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

// Do calls fn until it succeeds, returns an error the policy does not retry,
// runs out of attempts or ctx is done. Cancellation while backing off returns
// ctx.Err().
func Do(ctx context.Context, fn func() error, p Policy) error {
	name := p.Name
	if name == "" {
		name = "default"
	}
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return err != nil }
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExpoJitter{Base: 100 * time.Millisecond, Max: 5 * time.Second}
	}

	start := time.Now()
	finish := func(outcome string, err error) error {
		retryOutcomes.WithLabelValues(name, outcome).Inc()
		retryLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil && outcome != "canceled" && p.OnExhaust != nil {
			p.OnExhaust(err)
		}
		return err
	}
	span := trace.SpanFromContext(ctx)

	for i := 0; ; i++ {
		err := fn()
		retryAttempts.WithLabelValues(name).Inc()
		if err == nil {
			return finish("ok", nil)
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		span.AddEvent("retry.attempt", trace.WithAttributes(
			attribute.String("retry.policy", name),
			attribute.Int("retry.attempt", i+1),
			attribute.String("error", err.Error()),
		))
		if !retryable(err) {
			return finish("permanent", err)
		}
		if i == attempts-1 {
			return finish("exhausted", err)
		}

		t := time.NewTimer(backoff.Next(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return finish("canceled", ctx.Err())
		case <-t.C:
		}
	}
}
