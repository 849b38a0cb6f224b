package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the HTTP listener settings, kept separate from the trading
// config so the API port can move without touching pipeline env vars.
type Config struct {
	Port string `envconfig:"API_PORT" default:"8980"`
}

func GetConfig() *Config {
	config := Config{}
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
