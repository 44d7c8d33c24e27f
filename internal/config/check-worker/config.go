package check_worker_config

import (
	"time"

	"github.com/NordCoder/Upwatch/internal/config/common"
	pginfra "github.com/NordCoder/Upwatch/internal/repository/postgres"
)

type Probe struct {
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
}

type Lease struct {
	// TTL is granted on top of the monitor timeout when the lease is renewed
	// before probing.
	TTL time.Duration `mapstructure:"ttl"`
}

type Config struct {
	App     common.App      `mapstructure:"app"`
	DB      pginfra.Config  `mapstructure:"db"`
	In      common.KafkaIn  `mapstructure:"kafka_in"`
	Out     common.KafkaOut `mapstructure:"kafka_out"`
	Probe   Probe           `mapstructure:"probe"`
	Persist common.Persist  `mapstructure:"persist"`
	Lease   Lease           `mapstructure:"lease"`
	Outbox  common.Outbox   `mapstructure:"outbox"`
	Metrics common.Metrics  `mapstructure:"metrics"`
	Log     common.Log      `mapstructure:"log"`
	OTEL    common.OTEL     `mapstructure:"otel"`
}
