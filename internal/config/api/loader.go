package api_config

import (
	"github.com/NordCoder/Upwatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "api", ":8081")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 5)

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.topic", common.TopicCheckRequests)

	v.SetDefault("dispatch.lease_ttl", "2m")
	v.SetDefault("rollup.default_timezone", "UTC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, ErrConfig("db.dsn is empty")
	}
	if _, err := cfg.Rollup.Location(); err != nil {
		return nil, ErrConfig("rollup.default_timezone: " + err.Error())
	}
	return &cfg, nil
}
