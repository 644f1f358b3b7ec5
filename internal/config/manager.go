package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "phasebot/pkg/logx"
)

// Editors often write a file in several steps; reloads wait for the burst
// to settle.
const reloadDelay = 250 * time.Millisecond

// Manager owns one config file: the committed value, its subscribers and
// the file watcher.
type Manager struct {
	path string
	log  logx.Logger

	mu   sync.RWMutex
	cfg  *Config
	hash uint64

	// subsMu is held while sending so Unsubscribe never closes a channel
	// mid-send.
	subsMu sync.Mutex
	subs   []chan *Config
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log.With(logx.String("component", "config")) }
func (m *Manager) Path() string              { return m.path }

// Read parses the file without committing it.
func (m *Manager) Read() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, b)
}

// Load reads, validates and commits the file.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Read()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

// Current returns the last committed config, or nil before Load.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.hash = fingerprint(cfg)
	m.mu.Unlock()
}

// Subscribe returns a channel receiving every config committed by Watch.
// A slow subscriber only ever sees the newest one.
func (m *Manager) Subscribe(buffer int) chan *Config {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		for {
			select {
			case ch <- cfg:
			default:
				// Full: discard the oldest pending config and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// reload commits and publishes the file when its content changed and it
// validates. Rejected files leave the current config in place.
func (m *Manager) reload() {
	cfg, err := m.Read()
	if err != nil {
		m.log.Warn("config unreadable; keeping current", logx.Err(err))
		return
	}
	if err := Validate(cfg); err != nil {
		m.log.Warn("config rejected; keeping current", logx.Err(err))
		return
	}

	m.mu.RLock()
	old, same := m.cfg, m.hash == fingerprint(cfg)
	m.mu.RUnlock()
	if same {
		m.log.Debug("config rewritten without changes")
		return
	}

	m.commit(cfg)
	m.publish(cfg)

	changed, attrs := SummarizeConfigChange(old, cfg)
	attrs = append(attrs, logx.Any("changed", changed))
	m.log.Info("config reloaded", attrs...)
}

// Watch reloads the file on change until ctx is done. It returns an error
// when the underlying watcher fails so a supervisor can restart it, and
// ctx.Err() on cancellation.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// The directory is watched so atomic renames by editors are seen.
	dir, name := filepath.Split(m.path)
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	m.log.Debug("watching config", logx.String("path", m.path))

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.reload()
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watcher closed")
			}
			if filepath.Base(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watcher closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watch overflow; reloading", logx.Err(err))
				timer.Reset(0)
				continue
			}
			return fmt.Errorf("config watch: %w", err)
		}
	}
}
