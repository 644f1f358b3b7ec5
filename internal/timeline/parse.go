package timeline

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"phasebot/pkg/encounter"
)

//go:embed builtin/anduin.yaml
var builtinAnduin []byte

// Builtin returns the embedded three-phase encounter.
func Builtin() (*Encounter, error) { return Parse(builtinAnduin) }

// Load reads a definition file. An empty path loads the built-in one.
func Load(path string) (*Encounter, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	enc, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return enc, nil
}

// Parse decodes a definition strictly: unknown keys are errors.
func Parse(data []byte) (*Encounter, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var enc Encounter
	if err := dec.Decode(&enc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty timeline")
		}
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	return &enc, nil
}

// ParseRepeat parses a repeat string. Every interval must be > 0.
func ParseRepeat(raw string) (encounter.Repeat, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "once") {
		return encounter.Once(), nil
	}

	if lo, hi, ok := strings.Cut(s, ".."); ok {
		min, err := parsePositive(lo)
		if err != nil {
			return encounter.Repeat{}, err
		}
		max, err := parsePositive(hi)
		if err != nil {
			return encounter.Repeat{}, err
		}
		r := encounter.Between(min, max)
		if err := r.Validate(); err != nil {
			return encounter.Repeat{}, fmt.Errorf("repeat %q: %w", raw, err)
		}
		return r, nil
	}

	parts := strings.Split(s, ",")
	ds := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := parsePositive(p)
		if err != nil {
			return encounter.Repeat{}, err
		}
		ds = append(ds, d)
	}
	return encounter.Sequence(ds...), nil
}

func parsePositive(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be > 0", raw)
	}
	return d, nil
}

// parseOffset parses a delay that may be zero.
func parseOffset(what, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", what, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration %q must be >= 0", what, raw)
	}
	return d, nil
}
