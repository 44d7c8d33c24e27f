package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

func DefaultKafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "kafka_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// PersistPolicy retries a check completion transaction. Errors matched by
// permanent are returned at once.
func PersistPolicy(log *zap.Logger, attempts int, base, max time.Duration, permanent ...error) Policy {
	return Policy{
		Name:     "check_persist",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: base, Max: max, Jitter: 0.2},
		Retryable: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return false
			}
			for _, p := range permanent {
				if errors.Is(err, p) {
					return false
				}
			}
			return true
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("persist retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
