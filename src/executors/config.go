package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Tickers         []string      `envconfig:"LOOP_TICKERS"`
	LoopPeriod      time.Duration `envconfig:"LOOP_PERIOD" default:"60s"`
	AllowAfterHours bool          `envconfig:"ALLOW_AFTER_HOURS" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
