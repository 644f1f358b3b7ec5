// Package world hosts actors, each driven by a script on its own encounter
// scheduler, and ticks them together.
package world

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"phasebot/internal/script"
	"phasebot/pkg/encounter"
	"phasebot/pkg/logx"
)

type ActorID = script.ActorID

// Action types emitted by the world itself.
const (
	ActSpawn   = "spawn"
	ActDespawn = "despawn"
	ActEnd     = "end"
)

// Action is an emitted action stamped with world time and actor.
type Action struct {
	At    time.Duration
	Actor ActorID
	Kind  string
	Owner ActorID
	script.Emit
}

// Sink receives every action in emission order. It is called on the ticking
// goroutine and must not block.
type Sink interface {
	Record(a Action)
}

type SinkFunc func(a Action)

func (f SinkFunc) Record(a Action) { f(a) }

type Config struct {
	// Seed is the base seed. Each actor's scheduler uses Seed + id.
	Seed          int64
	KeepOnInvalid bool
}

// Info describes a live actor.
type Info struct {
	ID       ActorID
	Owner    ActorID
	Kind     string
	Name     string
	Ended    bool
	Snapshot encounter.Snapshot
}

var ErrNoActor = errors.New("no such actor")

// World owns actors by id. It is not safe for concurrent use.
type World struct {
	cfg  Config
	reg  *script.Registry
	log  logx.Logger
	obs  encounter.Observer
	sink Sink

	now    time.Duration
	last   ActorID
	actors map[ActorID]*actor
	// order holds live ids ascending. Ids only grow, so appends keep it sorted.
	order []ActorID
}

// New returns an empty world. sink and obs may be nil.
func New(cfg Config, reg *script.Registry, sink Sink, obs encounter.Observer, log logx.Logger) *World {
	if sink == nil {
		sink = SinkFunc(func(Action) {})
	}
	return &World{
		cfg:    cfg,
		reg:    reg,
		log:    log.With(logx.String("component", "world")),
		obs:    obs,
		sink:   sink,
		actors: map[ActorID]*actor{},
	}
}

// Now returns the world time.
func (w *World) Now() time.Duration { return w.now }

// Spawn creates an actor running a script of kind. owner is 0 for a root
// actor. The script is attached before Spawn returns.
func (w *World) Spawn(kind, name string, owner ActorID, lifetime time.Duration) (ActorID, error) {
	if owner != 0 && !w.Alive(owner) {
		return 0, fmt.Errorf("spawn %s: owner %d: %w", kind, owner, ErrNoActor)
	}
	sc, err := w.reg.New(kind, script.Def{Name: name, Lifetime: lifetime})
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", kind, err)
	}

	w.last++
	id := w.last
	if name == "" {
		name = kind
	}
	a := &actor{
		w:     w,
		id:    id,
		owner: owner,
		kind:  sc.Kind(),
		name:  name,
		log:   w.log.With(logx.Actor(uint32(id)), logx.String("kind", sc.Kind())),
	}
	a.s = encounter.New(encounter.Config{
		Name:          fmt.Sprintf("%s#%d", name, id),
		Seed:          w.cfg.Seed + int64(id),
		KeepOnInvalid: w.cfg.KeepOnInvalid,
	}, a.log, w.obs)
	a.s.SetGlobalValidator(func() bool {
		return w.Alive(id) && (owner == 0 || w.Alive(owner))
	})
	a.s.OnEnd(a.onEnd)

	w.actors[id] = a
	w.order = append(w.order, id)
	if o := w.actors[owner]; o != nil {
		o.children = append(o.children, id)
	}
	a.Emit(script.Emit{Type: ActSpawn, Name: name})

	if err := sc.Attach(a); err != nil {
		w.Despawn(id)
		return 0, fmt.Errorf("attach %s#%d: %w", kind, id, err)
	}
	return id, nil
}

// Despawn removes id and, recursively, every actor it spawned. The actor's
// scheduler is closed synchronously, so none of its work runs afterwards.
func (w *World) Despawn(id ActorID) bool {
	a := w.actors[id]
	if a == nil {
		return false
	}
	a.gone = true
	a.Emit(script.Emit{Type: ActDespawn, Name: a.name})

	delete(w.actors, id)
	if i, ok := slices.BinarySearch(w.order, id); ok {
		w.order = slices.Delete(w.order, i, i+1)
	}
	if o := w.actors[a.owner]; o != nil {
		o.children = slices.DeleteFunc(o.children, func(c ActorID) bool { return c == id })
	}
	for _, c := range slices.Clone(a.children) {
		w.Despawn(c)
	}
	_ = a.s.Close()
	return true
}

// Tick advances the world by delta and ticks every actor alive at the start
// of the tick once, in ascending id order. Actors spawned during the tick
// first run on the next one.
func (w *World) Tick(delta time.Duration) error {
	w.now += delta
	var errs []error
	for _, id := range slices.Clone(w.order) {
		a := w.actors[id]
		if a == nil {
			continue
		}
		if err := a.s.Tick(delta); err != nil {
			errs = append(errs, fmt.Errorf("actor %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Done reports whether no actor has work left: every remaining actor has
// ended, or none remain.
func (w *World) Done() bool {
	for _, a := range w.actors {
		if !a.s.Ended() {
			return false
		}
	}
	return true
}

// Alive reports whether id exists and has not ended.
func (w *World) Alive(id ActorID) bool {
	a := w.actors[id]
	return a != nil && !a.s.Ended()
}

// Lookup resolves an actor by id.
func (w *World) Lookup(id ActorID) (Info, bool) {
	a := w.actors[id]
	if a == nil {
		return Info{}, false
	}
	return a.info(), true
}

// Actors lists the actors in id order.
func (w *World) Actors() []Info {
	out := make([]Info, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.actors[id].info())
	}
	return out
}

// Close despawns every actor.
func (w *World) Close() {
	for _, id := range slices.Clone(w.order) {
		w.Despawn(id)
	}
}

type actor struct {
	w        *World
	id       ActorID
	owner    ActorID
	kind     string
	name     string
	log      logx.Logger
	s        *encounter.Scheduler
	children []ActorID
	gone     bool
}

func (a *actor) info() Info {
	return Info{
		ID:       a.id,
		Owner:    a.owner,
		Kind:     a.kind,
		Name:     a.name,
		Ended:    a.s.Ended(),
		Snapshot: a.s.Snapshot(),
	}
}

func (a *actor) onEnd() {
	if a.gone {
		return
	}
	a.Emit(script.Emit{Type: ActEnd, Name: a.name, Phase: a.s.Phase()})
	for _, c := range slices.Clone(a.children) {
		a.w.Despawn(c)
	}
}

func (a *actor) ID() script.ActorID              { return a.id }
func (a *actor) Owner() script.ActorID           { return a.owner }
func (a *actor) Scheduler() *encounter.Scheduler { return a.s }
func (a *actor) Logger() logx.Logger             { return a.log }
func (a *actor) Alive(id script.ActorID) bool    { return a.w.Alive(id) }
func (a *actor) Despawn(id script.ActorID) bool  { return a.w.Despawn(id) }

func (a *actor) Spawn(kind, name string, lifetime time.Duration) (script.ActorID, error) {
	return a.w.Spawn(kind, name, a.id, lifetime)
}

func (a *actor) Emit(e script.Emit) {
	a.w.sink.Record(Action{
		At:    a.w.now,
		Actor: a.id,
		Kind:  a.kind,
		Owner: a.owner,
		Emit:  e,
	})
}
