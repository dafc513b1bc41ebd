package config

import (
	"github.com/caarlos0/env/v10"
)

// parseEnv overlays values from ONBOARD_* environment variables onto the
// Config. Variables that are unset leave the corresponding field untouched,
// so env values override the JSON file but not the flags parsed afterwards.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
