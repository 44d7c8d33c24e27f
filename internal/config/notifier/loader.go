package notifier_config

import (
	"github.com/NordCoder/Upwatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "notifier", ":8084")

	v.SetDefault("kafka_in.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka_in.topic", common.TopicEvents)
	v.SetDefault("kafka_in.group_id", "notifier")
	v.SetDefault("kafka_in.partitions", 8)
	v.SetDefault("kafka_in.concurrency", 1)

	v.SetDefault("smtp.addr", "localhost:1025")
	v.SetDefault("smtp.from", "noreply@upwatch.dev")
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("smtp.timeout", "5s")
	v.SetDefault("smtp.subj_prefix", "[Upwatch]")

	v.SetDefault("discord.timeout", "5s")
	v.SetDefault("discord.username", "Upwatch")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
