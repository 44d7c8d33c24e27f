package rollup_aggregator_config

import (
	"github.com/NordCoder/Upwatch/internal/config/common"
	pginfra "github.com/NordCoder/Upwatch/internal/repository/postgres"
)

type Config struct {
	App     common.App     `mapstructure:"app"`
	DB      pginfra.Config `mapstructure:"db"`
	In      common.KafkaIn `mapstructure:"kafka_in"`
	Rollup  common.Rollup  `mapstructure:"rollup"`
	Persist common.Persist `mapstructure:"persist"`
	Metrics common.Metrics `mapstructure:"metrics"`
	Log     common.Log     `mapstructure:"log"`
	OTEL    common.OTEL    `mapstructure:"otel"`
}
