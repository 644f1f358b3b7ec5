package config

import "strings"

// Config is the on-disk configuration of a phasebot run. JSON or YAML.
type Config struct {
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	Storage *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	Metrics MetricsConfig  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Status  StatusConfig   `json:"status,omitempty" yaml:"status,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level" yaml:"level"`
	Format  string      `json:"format,omitempty" yaml:"format,omitempty"` // "console" (default) or "json"
	Console bool        `json:"console" yaml:"console"`
	File    LoggingFile `json:"file" yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// SimulationConfig controls how the world is driven.
//
// All durations are Go duration strings (e.g. "100ms", "20m").
//
// Defaults (when fields are omitted/zero):
//   - tick: "100ms"
//   - max_duration: "20m"
//   - seed: 1
//   - timeline: "" (built-in encounter)
type SimulationConfig struct {
	Tick        string `json:"tick,omitempty" yaml:"tick,omitempty"`
	MaxDuration string `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	Seed        int64  `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Timeline is a path to an encounter file. Empty selects the built-in one.
	Timeline string `json:"timeline,omitempty" yaml:"timeline,omitempty"`

	// Realtime drives the world from a wall-clock ticker instead of as fast
	// as possible.
	Realtime bool `json:"realtime,omitempty" yaml:"realtime,omitempty"`

	// KeepOnInvalid keeps an actor's other continuations when its global
	// validator fails.
	KeepOnInvalid bool `json:"keep_on_invalid,omitempty" yaml:"keep_on_invalid,omitempty"`

	// OverrunWarnEvery limits "tick overrun" warnings in realtime mode.
	OverrunWarnEvery string `json:"overrun_warn_every,omitempty" yaml:"overrun_warn_every,omitempty"`
}

// StorageConfig controls the action journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./phasebot_journal" }
type StorageConfig struct {
	Driver      string `json:"driver" yaml:"driver"`
	Path        string `json:"path" yaml:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty" yaml:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls the prometheus endpoint.
//
// Prefer binding to localhost (e.g. "127.0.0.1:9464").
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"` // default: "127.0.0.1:9464"
	Path    string `json:"path,omitempty" yaml:"path,omitempty"` // default: "/metrics"
}

// StatusConfig controls periodic status reports in realtime mode.
//
// Schedule accepts a cron expression ("*/1 * * * *", "@every 30s"),
// a Go duration ("30s") or HH:MM ("00:05"). Empty disables reports.
type StatusConfig struct {
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

func (c MetricsConfig) ListenAddr() string {
	if s := strings.TrimSpace(c.Addr); s != "" {
		return s
	}
	return "127.0.0.1:9464"
}

func (c MetricsConfig) HandlerPath() string {
	if s := strings.TrimSpace(c.Path); s != "" {
		return s
	}
	return "/metrics"
}
