package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Simulation is SimulationConfig with defaults applied and durations parsed.
type Simulation struct {
	Tick             time.Duration
	MaxDuration      time.Duration
	Seed             int64
	Timeline         string
	Realtime         bool
	KeepOnInvalid    bool
	OverrunWarnEvery time.Duration
}

// ResolveSimulation applies defaults to c.
func ResolveSimulation(c SimulationConfig) (Simulation, error) {
	tick, err := ParseDurationOrDefault("simulation.tick", c.Tick, 100*time.Millisecond)
	if err != nil {
		return Simulation{}, err
	}
	maxDur, err := ParseDurationOrDefault("simulation.max_duration", c.MaxDuration, 20*time.Minute)
	if err != nil {
		return Simulation{}, err
	}
	warn, err := ParseDurationOrDefault("simulation.overrun_warn_every", c.OverrunWarnEvery, 10*time.Second)
	if err != nil {
		return Simulation{}, err
	}
	seed := c.Seed
	if seed == 0 {
		seed = 1
	}
	return Simulation{
		Tick:             tick,
		MaxDuration:      maxDur,
		Seed:             seed,
		Timeline:         strings.TrimSpace(c.Timeline),
		Realtime:         c.Realtime,
		KeepOnInvalid:    c.KeepOnInvalid,
		OverrunWarnEvery: warn,
	}, nil
}

// Validate checks the parts of cfg that can be checked without side effects.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ResolveSimulation(cfg.Simulation); err != nil {
		return err
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "off", "disabled", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
