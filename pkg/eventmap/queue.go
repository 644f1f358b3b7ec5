package eventmap

import (
	"container/heap"
	"fmt"
	"iter"
	"math/rand"
	"slices"
	"time"

	"phasebot/pkg/clock"
)

// ID names an event. Ids are unique per active phase set, not globally.
type ID uint32

// Options controls how an event is scheduled.
type Options struct {
	Mask   Mask
	Repeat Repeat
	// Persistent events survive phase switches that exclude them. They stay
	// dormant until a phase in their mask is entered again.
	Persistent bool
}

// Fired describes one popped event.
type Fired struct {
	ID   ID
	Due  time.Duration
	Mask Mask
	// Repeating is true when the event was re-armed before being yielded.
	Repeating bool
}

// Pending is a diagnostic view of a queued event.
type Pending struct {
	ID         ID
	Due        time.Duration
	Mask       Mask
	Repeat     string
	Persistent bool
	Active     bool
}

// Queue is a phase-aware timer map. It is not safe for concurrent use.
type Queue struct {
	clk *clock.Clock
	rng *rand.Rand

	h entryHeap
	// parked holds due entries that were skipped by the running drain because
	// they are out of phase or were armed during it. They return to h when
	// the drain ends.
	parked []*entry

	phase    Phase
	seq      uint64
	draining bool
	firing   *entry
}

// New returns an empty queue reading time from clk.
// A nil rng gets a fixed seed so runs stay reproducible.
func New(clk *clock.Clock, rng *rand.Rand) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Queue{clk: clk, rng: rng}
}

// Schedule arms id to fire delay from now in the phases of mask.
func (q *Queue) Schedule(id ID, delay time.Duration, mask Mask, r Repeat) error {
	return q.ScheduleOpt(id, delay, Options{Mask: mask, Repeat: r})
}

// ScheduleOpt is Schedule with options.
//
// An existing event with the same id and an overlapping mask is replaced.
func (q *Queue) ScheduleOpt(id ID, delay time.Duration, opt Options) error {
	if err := q.clk.Guard(); err != nil {
		return err
	}
	if err := clock.CheckInterval("delay", delay); err != nil {
		return err
	}
	if err := opt.Repeat.Validate(); err != nil {
		return err
	}
	q.insert(&entry{
		id:         id,
		due:        q.clk.At(delay),
		mask:       opt.Mask,
		repeat:     opt.Repeat,
		persistent: opt.Persistent,
	})
	return nil
}

func (q *Queue) insert(e *entry) {
	q.removeIf(func(o *entry) bool { return o.id == e.id && o.mask.Overlaps(e.mask) })
	e.seq = q.nextSeq()
	heap.Push(&q.h, e)
}

func (q *Queue) nextSeq() uint64 {
	s := q.seq
	q.seq++
	return s
}

// Cancel removes every event with the given id. It reports whether anything
// was removed.
func (q *Queue) Cancel(id ID) bool {
	return q.removeIf(func(e *entry) bool { return e.id == id }) > 0
}

// SwitchPhase drops every non-persistent event that is not active in p and
// makes p the current phase. It returns the number of dropped events.
func (q *Queue) SwitchPhase(p Phase) int {
	n := q.removeIf(func(e *entry) bool { return !e.persistent && !e.mask.ActiveIn(p) })
	q.phase = p
	return n
}

// Phase returns the current phase.
func (q *Queue) Phase() Phase { return q.phase }

// IsInPhase reports whether p is the current phase.
func (q *Queue) IsInPhase(p Phase) bool { return p != 0 && q.phase == p }

// Reset drops every event and leaves the queue with no phase.
func (q *Queue) Reset() {
	for _, e := range q.h {
		e.index = -1
	}
	clear(q.h)
	clear(q.parked)
	q.h = q.h[:0]
	q.parked = q.parked[:0]
	q.phase = 0
	q.firing = nil
}

// Len returns the number of queued events, dormant ones included.
func (q *Queue) Len() int { return len(q.h) + len(q.parked) }

// Delay pushes every queued event back by d.
func (q *Queue) Delay(d time.Duration) error {
	if err := clock.CheckInterval("delay", d); err != nil {
		return err
	}
	for _, e := range q.h {
		e.due += d
	}
	for _, e := range q.parked {
		e.due += d
	}
	return nil
}

// TimeUntil returns the time left before the earliest event with id is due.
func (q *Queue) TimeUntil(id ID) (time.Duration, bool) {
	var (
		best  time.Duration
		found bool
	)
	q.each(func(e *entry) {
		if e.id == id && (!found || e.due < best) {
			best = e.due
			found = true
		}
	})
	if !found {
		return 0, false
	}
	return max(best-q.clk.Now(), 0), true
}

// Snapshot lists queued events ordered by due time and arm order.
func (q *Queue) Snapshot() []Pending {
	all := make([]*entry, 0, q.Len())
	q.each(func(e *entry) { all = append(all, e) })
	slices.SortFunc(all, func(a, b *entry) int {
		if a.due != b.due {
			if a.due < b.due {
				return -1
			}
			return 1
		}
		if a.seq < b.seq {
			return -1
		}
		return 1
	})
	out := make([]Pending, len(all))
	for i, e := range all {
		out[i] = Pending{
			ID:         e.id,
			Due:        e.due,
			Mask:       e.mask,
			Repeat:     e.repeat.String(),
			Persistent: e.persistent,
			Active:     e.mask.ActiveIn(q.phase),
		}
	}
	return out
}

// Due returns the events that are due now, in order.
//
// Repeating events are re-armed before they are yielded, so a handler that
// schedules the same id again overrides the automatic repeat. Events armed
// while the sequence runs are not yielded by it, even when already due.
// Ranging over Due from inside a handler of an outer Due yields nothing.
func (q *Queue) Due() iter.Seq[Fired] {
	return func(yield func(Fired) bool) {
		if q.draining {
			return
		}
		q.draining = true
		defer func() {
			q.draining = false
			q.firing = nil
			q.unpark()
		}()

		bound := q.seq
		for !q.clk.Stopped() {
			e := q.popEligible(bound)
			if e == nil {
				return
			}
			now := q.clk.Now()
			if e.due > now {
				panic(fmt.Sprintf("eventmap: popped event %d not due until %s (now %s)", e.id, e.due, now))
			}
			f := Fired{ID: e.id, Due: e.due, Mask: e.mask}
			if !e.repeat.IsOnce() {
				var d time.Duration
				d, e.repeat = e.repeat.advance(q.rng)
				e.due += d
				e.seq = q.nextSeq()
				heap.Push(&q.h, e)
				f.Repeating = true
			}
			q.firing = e
			if !yield(f) {
				return
			}
			q.firing = nil
		}
	}
}

// Repeat re-arms the event currently being yielded by Due to fire d after its
// due time, overriding its repeat spec for this round.
// Outside of a Due loop it does nothing.
func (q *Queue) Repeat(fired Fired, d time.Duration) error {
	if err := q.clk.Guard(); err != nil {
		return err
	}
	if err := clock.CheckInterval("repeat", d); err != nil {
		return err
	}
	e := q.firing
	if e == nil || e.id != fired.ID {
		return nil
	}
	q.insert(&entry{
		id:         e.id,
		due:        fired.Due + d,
		mask:       e.mask,
		repeat:     e.repeat,
		persistent: e.persistent,
	})
	q.firing = nil
	return nil
}

// RepeatBetween is Repeat with a random delay in [min, max].
func (q *Queue) RepeatBetween(fired Fired, min, max time.Duration) error {
	r := Between(min, max)
	if err := r.Validate(); err != nil {
		return err
	}
	d, _ := r.advance(q.rng)
	return q.Repeat(fired, d)
}

// popEligible pops the earliest due entry that may fire in the current drain.
// Due entries that may not fire are parked.
func (q *Queue) popEligible(bound uint64) *entry {
	now := q.clk.Now()
	for {
		top := q.h.peek()
		if top == nil || top.due > now {
			return nil
		}
		e := heap.Pop(&q.h).(*entry)
		if e.seq >= bound || !e.mask.ActiveIn(q.phase) {
			q.parked = append(q.parked, e)
			continue
		}
		return e
	}
}

func (q *Queue) unpark() {
	for _, e := range q.parked {
		heap.Push(&q.h, e)
	}
	clear(q.parked)
	q.parked = q.parked[:0]
}

func (q *Queue) each(fn func(e *entry)) {
	for _, e := range q.h {
		fn(e)
	}
	for _, e := range q.parked {
		fn(e)
	}
}

// removeIf deletes matching entries from the heap and the parked set.
func (q *Queue) removeIf(match func(e *entry) bool) int {
	removed := 0
	n := 0
	for _, e := range q.h {
		if match(e) {
			e.index = -1
			removed++
			continue
		}
		q.h[n] = e
		n++
	}
	if n < len(q.h) {
		clear(q.h[n:])
		q.h = q.h[:n]
		for i, e := range q.h {
			e.index = i
		}
		heap.Init(&q.h)
	}

	m := 0
	for _, e := range q.parked {
		if match(e) {
			removed++
			continue
		}
		q.parked[m] = e
		m++
	}
	clear(q.parked[m:])
	q.parked = q.parked[:m]

	if q.firing != nil && match(q.firing) {
		q.firing = nil
	}
	return removed
}
