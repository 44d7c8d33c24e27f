package notifier_config

import (
	"time"

	"github.com/NordCoder/Upwatch/internal/config/common"
	pginfra "github.com/NordCoder/Upwatch/internal/repository/postgres"
)

type SMTP struct {
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

type Discord struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
}

type Config struct {
	App     common.App     `mapstructure:"app"`
	DB      pginfra.Config `mapstructure:"db"`
	In      common.KafkaIn `mapstructure:"kafka_in"`
	SMTP    SMTP           `mapstructure:"smtp"`
	Discord Discord        `mapstructure:"discord"`
	Metrics common.Metrics `mapstructure:"metrics"`
	Log     common.Log     `mapstructure:"log"`
	OTEL    common.OTEL    `mapstructure:"otel"`
}
