package scheduler_config

import (
	"time"

	"github.com/NordCoder/Upwatch/internal/config/common"
	pginfra "github.com/NordCoder/Upwatch/internal/repository/postgres"
)

type SchedCfg struct {
	Tick       time.Duration `mapstructure:"tick"`
	BatchLimit int           `mapstructure:"batch_limit"`
	// LeaseTTL is how long a dispatched check may stay in flight on top of the
	// monitor's own timeout before the monitor becomes claimable again.
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

type Config struct {
	App     common.App      `mapstructure:"app"`
	DB      pginfra.Config  `mapstructure:"db"`
	Kafka   common.KafkaOut `mapstructure:"kafka"`
	Sched   SchedCfg        `mapstructure:"sched"`
	Metrics common.Metrics  `mapstructure:"metrics"`
	Log     common.Log      `mapstructure:"log"`
	OTEL    common.OTEL     `mapstructure:"otel"`
}
