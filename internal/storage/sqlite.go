//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "phasebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("journal opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal(run, seq, at, logical_ns, actor, kind, type, name, phase, target, meta)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Seq, r.At.Format(time.RFC3339Nano), int64(r.Logical), r.Actor, r.Kind, r.Type,
		nullStr(r.Name), r.Phase, r.Target, nullStr(r.Meta),
	)
	return err
}

func (s *sqliteStore) Records(ctx context.Context, runID string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run, seq, at, logical_ns, actor, kind, type, name, phase, target, meta
		 FROM journal WHERE run = ? ORDER BY seq, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			at         string
			logical    int64
			name, meta sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Seq, &at, &logical, &r.Actor, &r.Kind, &r.Type, &name, &r.Phase, &r.Target, &meta); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.Logical = time.Duration(logical)
		r.Name = name.String
		r.Meta = meta.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Runs(ctx context.Context) ([]RunInfo, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run, MIN(at), COUNT(*) FROM journal GROUP BY run ORDER BY MIN(id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			ri RunInfo
			at string
		)
		if err := rows.Scan(&ri.RunID, &at, &ri.Records); err != nil {
			return nil, err
		}
		ri.Started, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, ri)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
