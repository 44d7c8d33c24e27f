package kafka

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONHandler decodes each message value into a fresh M. Undecodable messages
// are reported as errors and skipped by the consumer.
func JSONHandler[M any](handle func(context.Context, []byte, *M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := new(M)
		if err := json.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		return handle(ctx, key, msg)
	}
}
