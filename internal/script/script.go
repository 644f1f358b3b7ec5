// Package script defines the behaviors that drive actors and the registry
// that builds them by kind.
package script

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"phasebot/internal/timeline"
	"phasebot/pkg/encounter"
	"phasebot/pkg/logx"
)

// ActorID names an actor in a world. 0 is "no actor".
type ActorID uint32

// Emit is an action performed by an actor. Its content is opaque to the
// scheduler; the world stamps it with time and actor and forwards it.
type Emit struct {
	Type   string
	Name   string
	Phase  encounter.Phase
	Target ActorID
}

// Host is what a script may do with the actor it is attached to.
type Host interface {
	ID() ActorID
	Owner() ActorID
	Scheduler() *encounter.Scheduler
	Logger() logx.Logger
	Emit(e Emit)
	Spawn(kind, name string, lifetime time.Duration) (ActorID, error)
	Despawn(id ActorID) bool
	Alive(id ActorID) bool
}

// Script is a behavior variant. Attach registers handlers and arms the
// initial timeline on the host's scheduler.
type Script interface {
	Kind() string
	Attach(h Host) error
}

// Def parameterizes a new script.
type Def struct {
	Name     string
	Lifetime time.Duration
}

// Factory builds a script for one actor.
type Factory func(def Def) (Script, error)

var ErrUnknownKind = errors.New("unknown script kind")

// Registry maps kinds to factories. It is built once at startup and passed
// to whatever spawns actors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory. Registering a kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || f == nil {
		return errors.New("script kind and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("script kind %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// New builds a script of kind.
func (r *Registry) New(kind string, def Def) (Script, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	r.mu.RLock()
	f := r.factories[kind]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f(def)
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Defaults returns a registry with the built-in kinds: "timeline" running
// plan and "add".
func Defaults(plan *timeline.Plan) (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(KindTimeline, func(Def) (Script, error) { return NewTimeline(plan), nil }); err != nil {
		return nil, err
	}
	if err := r.Register(KindAdd, func(def Def) (Script, error) { return NewAdd(def), nil }); err != nil {
		return nil, err
	}
	return r, nil
}
