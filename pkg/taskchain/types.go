package taskchain

import "time"

// Group tags a family of continuations for bulk cancellation. 0 is "no group".
type Group uint32

// NoGroup is the zero group.
const NoGroup Group = 0

// Func is the body of a continuation.
type Func func(tc *Context)

// Validator gates whether continuations may still fire.
type Validator func() bool

// Options controls a single continuation.
type Options struct {
	Group Group
	// Validator further restricts this continuation. The scheduler-wide
	// validator must pass as well.
	Validator Validator
}

// DropReason says why a continuation was discarded without running.
type DropReason string

const (
	DropGlobalValidator DropReason = "global_validator"
	DropTaskValidator   DropReason = "task_validator"
)

// Config controls a Scheduler.
type Config struct {
	// PurgeOnInvalid discards every pending continuation the first time the
	// scheduler-wide validator fails at firing time. When false only the
	// failing continuation is discarded.
	PurgeOnInvalid bool

	// OnDrop is called for each continuation dropped by a validator.
	OnDrop func(group Group, reason DropReason)

	// OnFire is called right before each continuation runs.
	OnFire func(group Group)
}

// DefaultConfig purges on validator failure.
func DefaultConfig() Config { return Config{PurgeOnInvalid: true} }

type task struct {
	due     time.Duration
	seq     uint64
	fn      Func
	opt     Options
	repeats int
	index   int
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
