package scheduler_config

import (
	"errors"

	"github.com/NordCoder/Upwatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "scheduler", ":8082")

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.topic", common.TopicCheckRequests)

	v.SetDefault("sched.tick", "1s")
	v.SetDefault("sched.batch_limit", 100)
	v.SetDefault("sched.lease_ttl", "2m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Sched.Tick <= 0 {
		return nil, errors.New("sched.tick must be > 0")
	}
	return &cfg, nil
}
