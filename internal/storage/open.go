package storage

import (
	"context"
	"fmt"
	"strings"

	logx "phasebot/pkg/logx"
)

// Store is the journal API used by the runner and the CLI.
type Store interface {
	Append(ctx context.Context, r Record) error
	Records(ctx context.Context, runID string) ([]Record, error)
	Runs(ctx context.Context) ([]RunInfo, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "off", "disabled":
		return nil, nil
	}
	log = log.With(logx.String("component", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
