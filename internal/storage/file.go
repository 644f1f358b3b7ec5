package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "phasebot/pkg/logx"
)

// fileStore is a dependency-free journal backend.
//
// Files:
//   - <prefix>.journal.jsonl (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	journalPath := prefix + ".journal.jsonl"
	f, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("journal opened", logx.String("path", journalPath))
	return &fileStore{log: log, path: journalPath, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err1 := s.w.Flush()
	err2 := s.f.Close()
	s.f, s.w = nil, nil
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) Append(ctx context.Context, r Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.w).Encode(r)
}

// scan flushes pending writes and calls fn for every readable record.
// Corrupt lines (e.g. a torn last write) are skipped.
func (s *fileStore) scan(fn func(r Record)) error {
	s.mu.Lock()
	if s.f == nil {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.w.Flush(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	skipped := 0
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			skipped++
			continue
		}
		fn(r)
	}
	if skipped > 0 {
		s.log.Warn("journal lines skipped", logx.Int("count", skipped), logx.String("path", s.path))
	}
	return sc.Err()
}

func (s *fileStore) Records(ctx context.Context, runID string) ([]Record, error) {
	_ = ctx
	var out []Record
	err := s.scan(func(r Record) {
		if r.RunID == runID {
			out = append(out, r)
		}
	})
	return out, err
}

func (s *fileStore) Runs(ctx context.Context) ([]RunInfo, error) {
	_ = ctx
	var (
		out   []RunInfo
		index = map[string]int{}
	)
	err := s.scan(func(r Record) {
		i, ok := index[r.RunID]
		if !ok {
			i = len(out)
			index[r.RunID] = i
			out = append(out, RunInfo{RunID: r.RunID, Started: r.At})
		}
		out[i].Records++
	})
	return out, err
}
