package check_worker_config

import (
	"github.com/NordCoder/Upwatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "check-worker", ":8083")

	v.SetDefault("kafka_in.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka_in.topic", common.TopicCheckRequests)
	v.SetDefault("kafka_in.group_id", "check-worker")
	v.SetDefault("kafka_in.partitions", 8)
	v.SetDefault("kafka_in.concurrency", 8)

	v.SetDefault("kafka_out.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka_out.topic", common.TopicEvents)

	v.SetDefault("probe.dial_timeout", "5s")
	v.SetDefault("probe.user_agent", "Upwatch/1.0")
	v.SetDefault("probe.max_redirects", 10)
	v.SetDefault("probe.follow_redirects", false)
	v.SetDefault("probe.verify_tls", true)

	v.SetDefault("persist.attempts", 5)
	v.SetDefault("persist.base", "100ms")
	v.SetDefault("persist.max", "3s")

	v.SetDefault("lease.ttl", "2m")

	v.SetDefault("outbox.workers", 1)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.wait_time", "1s")
	v.SetDefault("outbox.in_progress_ttl", "30s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
