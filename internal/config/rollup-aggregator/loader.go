package rollup_aggregator_config

import (
	"fmt"

	"github.com/NordCoder/Upwatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "rollup-aggregator", ":8085")

	v.SetDefault("kafka_in.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka_in.topic", common.TopicEvents)
	v.SetDefault("kafka_in.group_id", "rollup-aggregator")
	v.SetDefault("kafka_in.partitions", 8)
	v.SetDefault("kafka_in.concurrency", 2)

	v.SetDefault("rollup.default_timezone", "UTC")

	v.SetDefault("persist.attempts", 8)
	v.SetDefault("persist.base", "200ms")
	v.SetDefault("persist.max", "5s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Rollup.Location(); err != nil {
		return nil, fmt.Errorf("rollup.default_timezone: %w", err)
	}
	return &cfg, nil
}
