package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one journaled action.
// Keep it compact and schema-stable.
type Record struct {
	RunID string    `json:"run"`
	Seq   int64     `json:"seq"`
	At    time.Time `json:"at"`
	// Logical is the world time when the action happened.
	Logical time.Duration `json:"logical_ns"`
	Actor   uint32        `json:"actor"`
	Kind    string        `json:"kind"`
	Type    string        `json:"type"`
	Name    string        `json:"name,omitempty"`
	Phase   int           `json:"phase,omitempty"`
	Target  uint32        `json:"target,omitempty"`
	Meta    string        `json:"meta,omitempty"`
}

// RunInfo summarizes one journaled run.
type RunInfo struct {
	RunID   string
	Started time.Time
	Records int
}
