package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/config/common"
	"github.com/NordCoder/Upwatch/internal/repository/kafka"
)

// kafka-init creates the check request and domain event topics ahead of the
// services. Topics are configured with KAFKA_BROKER, KAFKA_TOPICS,
// KAFKA_PARTITIONS and KAFKA_RF.
func main() {
	broker := env("KAFKA_BROKER", "kafka:9092")
	topics := strings.Split(env("KAFKA_TOPICS", common.TopicCheckRequests+","+common.TopicEvents), ",")
	partitions := envInt("KAFKA_PARTITIONS", 8)
	rf := envInt("KAFKA_RF", 1)

	l, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		err := kafka.EnsureTopic(ctx, []string{broker}, kafka.TopicSpec{
			Name:              t,
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			MaxWait:           30 * time.Second,
		}, l)
		if err != nil {
			l.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	l.Info("kafka-init ok", zap.Strings("topics", topics))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
