package api

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/meridian-energy/horizon.plan/internal/units"
)

// Config holds the HTTP service settings, populated from the
// environment.
type Config struct {
	Listen        string `env:"HORIZON_LISTEN" envDefault:":8080"`
	OutputDB      string `env:"HORIZON_OUTPUT_DB" envDefault:"horizon.db"`
	CapacityUnits string `env:"HORIZON_CAPACITY_UNITS" envDefault:"GW"`
	ActivityUnits string `env:"HORIZON_ACTIVITY_UNITS" envDefault:"PJ"`
}

// FromEnv reads the service configuration from HORIZON_* environment
// variables and validates the unit selections.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("api: parse environment: %w", err)
	}
	if !units.IsValidCapacity(cfg.CapacityUnits) {
		return Config{}, fmt.Errorf("api: invalid capacity units %q (valid: %v)", cfg.CapacityUnits, units.ValidCapacityUnits)
	}
	if !units.IsValidActivity(cfg.ActivityUnits) {
		return Config{}, fmt.Errorf("api: invalid activity units %q (valid: %v)", cfg.ActivityUnits, units.ValidActivityUnits)
	}
	return cfg, nil
}
