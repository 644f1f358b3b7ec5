package eventmap

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"phasebot/pkg/clock"
)

type repeatKind int

const (
	repeatOnce repeatKind = iota
	repeatEvery
	repeatBetween
	repeatSequence
)

// Repeat describes what happens to an event after it fires.
//
// The zero value is a one-shot.
type Repeat struct {
	kind repeatKind
	min  time.Duration
	max  time.Duration
	seq  []time.Duration
}

// Once is the one-shot repeat spec.
func Once() Repeat { return Repeat{} }

// Every re-arms the event d after each due time.
func Every(d time.Duration) Repeat { return Repeat{kind: repeatEvery, min: d, max: d} }

// Between re-arms the event after a random interval in [min, max].
func Between(min, max time.Duration) Repeat {
	if min == max {
		return Every(min)
	}
	return Repeat{kind: repeatBetween, min: min, max: max}
}

// Sequence re-arms the event with each interval in turn. The last interval
// is reused once the others are consumed.
func Sequence(ds ...time.Duration) Repeat {
	switch len(ds) {
	case 0:
		return Once()
	case 1:
		return Every(ds[0])
	}
	cp := append([]time.Duration(nil), ds...)
	return Repeat{kind: repeatSequence, seq: cp}
}

// IsOnce reports whether the spec is a one-shot.
func (r Repeat) IsOnce() bool { return r.kind == repeatOnce }

// Validate rejects negative intervals and inverted ranges.
func (r Repeat) Validate() error {
	switch r.kind {
	case repeatEvery:
		return clock.CheckInterval("repeat", r.min)
	case repeatBetween:
		if err := clock.CheckInterval("repeat min", r.min); err != nil {
			return err
		}
		if r.max < r.min {
			return fmt.Errorf("repeat range %s..%s: %w", r.min, r.max, clock.ErrInvalidInterval)
		}
	case repeatSequence:
		for _, d := range r.seq {
			if err := clock.CheckInterval("repeat step", d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Bounds returns the smallest and largest interval the spec can yield next.
func (r Repeat) Bounds() (time.Duration, time.Duration) {
	switch r.kind {
	case repeatEvery, repeatBetween:
		return r.min, r.max
	case repeatSequence:
		return r.seq[0], r.seq[0]
	}
	return 0, 0
}

// advance returns the next interval and the spec to use afterwards.
func (r Repeat) advance(rng *rand.Rand) (time.Duration, Repeat) {
	switch r.kind {
	case repeatEvery:
		return r.min, r
	case repeatBetween:
		span := int64(r.max - r.min)
		return r.min + time.Duration(rng.Int63n(span+1)), r
	case repeatSequence:
		d := r.seq[0]
		if len(r.seq) > 1 {
			r.seq = r.seq[1:]
		}
		return d, r
	}
	return 0, r
}

func (r Repeat) String() string {
	switch r.kind {
	case repeatEvery:
		return "every " + r.min.String()
	case repeatBetween:
		return r.min.String() + ".." + r.max.String()
	case repeatSequence:
		parts := make([]string, len(r.seq))
		for i, d := range r.seq {
			parts[i] = d.String()
		}
		return strings.Join(parts, ",")
	}
	return "once"
}
