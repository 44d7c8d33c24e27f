package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BootstrapGroup makes sure the topic exists and returns size consumers
// sharing cfg.GroupID.
func BootstrapGroup(ctx context.Context, cfg *ConsumerConfig, partitions, size int, logger *zap.Logger) Group {
	_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger)

	cfg.Logger = logger
	return NewGroup(cfg, size)
}
