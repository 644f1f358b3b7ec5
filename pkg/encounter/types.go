package encounter

import (
	"errors"
	"time"

	"phasebot/pkg/clock"
	"phasebot/pkg/eventmap"
	"phasebot/pkg/phase"
	"phasebot/pkg/taskchain"
)

type (
	EventID      = eventmap.ID
	Phase        = eventmap.Phase
	Mask         = eventmap.Mask
	Repeat       = eventmap.Repeat
	EventOptions = eventmap.Options
	Pending      = eventmap.Pending

	Group       = taskchain.Group
	TaskFunc    = taskchain.Func
	TaskContext = taskchain.Context
	TaskOptions = taskchain.Options
	Validator   = taskchain.Validator
	DropReason  = taskchain.DropReason

	PhaseHook = phase.Hook
)

// MaxPhase is the highest usable phase.
const MaxPhase = eventmap.MaxPhase

var (
	ErrInvalidInterval = clock.ErrInvalidInterval
	ErrEnded           = clock.ErrEnded
	ErrInvalidPhase    = phase.ErrInvalidPhase
	// ErrTickInProgress is returned by Tick when called from inside a handler.
	ErrTickInProgress = errors.New("tick already in progress")
)

// Re-exported constructors so callers rarely need the lower packages.
var (
	Phases   = eventmap.Phases
	Once     = eventmap.Once
	Every    = eventmap.Every
	Between  = eventmap.Between
	Sequence = eventmap.Sequence
)

// EventFunc handles a fired event.
type EventFunc func(ec *EventContext)

// Config controls a Scheduler.
type Config struct {
	// Name labels logs and metrics.
	Name string
	// Seed feeds the random repeat ranges. 0 means 1.
	Seed int64
	// KeepOnInvalid keeps the other pending continuations when the global
	// validator fails. By default they are all discarded.
	KeepOnInvalid bool
}

// Observer receives scheduler activity. Implementations must not call back
// into the scheduler.
type Observer interface {
	EventFired(name string, id EventID, p Phase)
	TaskFired(name string, g Group)
	TaskDropped(name string, g Group, reason DropReason)
	PhaseEntered(name string, p Phase)
	Ended(name string)
	Ticked(name string, delta time.Duration, events, tasks int)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) EventFired(string, EventID, Phase)      {}
func (NopObserver) TaskFired(string, Group)                {}
func (NopObserver) TaskDropped(string, Group, DropReason)  {}
func (NopObserver) PhaseEntered(string, Phase)             {}
func (NopObserver) Ended(string)                           {}
func (NopObserver) Ticked(string, time.Duration, int, int) {}

// Snapshot is a diagnostic view of a scheduler.
type Snapshot struct {
	Name     string
	Now      time.Duration
	Phase    Phase
	History  []Phase
	Ended    bool
	Events   []Pending
	Tasks    int
	NextTask time.Duration
	HasTask  bool
}
