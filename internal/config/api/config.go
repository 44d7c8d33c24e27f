package api_config

import (
	"time"

	"github.com/NordCoder/Upwatch/internal/config/common"
	pg "github.com/NordCoder/Upwatch/internal/repository/postgres"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Dispatch struct {
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

type Config struct {
	App      common.App      `mapstructure:"app"`
	Server   Server          `mapstructure:"server"`
	DB       pg.Config       `mapstructure:"db"`
	Kafka    common.KafkaOut `mapstructure:"kafka"`
	Dispatch Dispatch        `mapstructure:"dispatch"`
	Rollup   common.Rollup   `mapstructure:"rollup"`
	OTEL     common.OTEL     `mapstructure:"otel"`
	Log      common.Log      `mapstructure:"log"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
