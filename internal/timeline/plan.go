package timeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"phasebot/pkg/encounter"
)

type ActionKind uint8

const (
	ActCast ActionKind = iota + 1
	ActSay
	ActEnterPhase
	ActEnd
	ActChain
	ActCancel
	ActCancelChain
	ActSpawn
)

func (k ActionKind) String() string {
	switch k {
	case ActCast:
		return "cast"
	case ActSay:
		return "say"
	case ActEnterPhase:
		return "enter_phase"
	case ActEnd:
		return "end"
	case ActChain:
		return "chain"
	case ActCancel:
		return "cancel"
	case ActCancelChain:
		return "cancel_chain"
	case ActSpawn:
		return "spawn"
	default:
		return "unknown"
	}
}

// Action is a compiled ActionDef.
type Action struct {
	Kind ActionKind
	// Name is the spell, the line, the chain or the spawned actor name.
	Name   string
	Phase  encounter.Phase
	Events []encounter.EventID
	Group  encounter.Group
	Spawn  Spawn
}

type Spawn struct {
	Kind     string
	Name     string
	Count    int
	Lifetime time.Duration
}

type Event struct {
	ID         encounter.EventID
	Name       string
	After      time.Duration
	Repeat     encounter.Repeat
	Mask       encounter.Mask
	Persistent bool
	Actions    []Action
}

type Phase struct {
	ID      encounter.Phase
	Name    string
	OnEnter []Action
	Events  []*Event
}

type Step struct {
	At      time.Duration
	Actions []Action
}

type Chain struct {
	Name  string
	Group encounter.Group
	Steps []Step
}

// Plan is a compiled encounter, ready to be installed.
type Plan struct {
	Name   string
	Phases []*Phase
	Chains map[string]*Chain

	events  []*Event
	byName  map[string]encounter.EventID
	names   []string
	byGroup map[encounter.Group]*Chain
}

// Start returns the first phase to enter.
func (p *Plan) Start() encounter.Phase { return p.Phases[0].ID }

// Phase returns the definition of id.
func (p *Plan) Phase(id encounter.Phase) (*Phase, bool) {
	for _, ph := range p.Phases {
		if ph.ID == id {
			return ph, true
		}
	}
	return nil, false
}

// EventID returns the id assigned to an event name.
func (p *Plan) EventID(name string) (encounter.EventID, bool) {
	id, ok := p.byName[name]
	return id, ok
}

// EventName returns the name of id.
func (p *Plan) EventName(id encounter.EventID) string {
	if id == 0 || int(id) > len(p.names) {
		return fmt.Sprintf("event#%d", id)
	}
	return p.names[id-1]
}

// EventFor returns the definition of id that is active in phase.
func (p *Plan) EventFor(id encounter.EventID, phase encounter.Phase) *Event {
	var first *Event
	for _, ev := range p.events {
		if ev.ID != id {
			continue
		}
		if ev.Mask.ActiveIn(phase) {
			return ev
		}
		if first == nil {
			first = ev
		}
	}
	return first
}

// ChainByGroup returns the chain running in g.
func (p *Plan) ChainByGroup(g encounter.Group) (*Chain, bool) {
	c, ok := p.byGroup[g]
	return c, ok
}

// Validate reports every problem in enc.
func Validate(enc *Encounter) error {
	_, err := Compile(enc)
	return err
}

// Compile resolves names, durations and repeat strings. All problems are
// reported together.
func Compile(enc *Encounter) (*Plan, error) {
	if enc == nil {
		return nil, errors.New("timeline is nil")
	}
	c := &compiler{
		plan: &Plan{
			Name:    strings.TrimSpace(enc.Name),
			Chains:  map[string]*Chain{},
			byName:  map[string]encounter.EventID{},
			byGroup: map[encounter.Group]*Chain{},
		},
		phases: map[int]bool{},
	}
	c.compile(enc)
	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return c.plan, nil
}

type compiler struct {
	plan   *Plan
	phases map[int]bool
	errs   []error
}

func (c *compiler) errorf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func (c *compiler) compile(enc *Encounter) {
	if c.plan.Name == "" {
		c.errorf("name is required")
	}
	if len(enc.Phases) == 0 {
		c.errorf("at least one phase is required")
	}

	for i, ph := range enc.Phases {
		if ph.ID < 1 || ph.ID > int(encounter.MaxPhase) {
			c.errorf("phases[%d]: id %d out of range 1..%d", i, ph.ID, encounter.MaxPhase)
			continue
		}
		if c.phases[ph.ID] {
			c.errorf("phases[%d]: duplicate id %d", i, ph.ID)
			continue
		}
		c.phases[ph.ID] = true
	}

	// Chains get groups in name order so runs are reproducible.
	names := make([]string, 0, len(enc.Chains))
	for name := range enc.Chains {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		ch := &Chain{Name: name, Group: encounter.Group(i + 1)}
		c.plan.Chains[name] = ch
		c.plan.byGroup[ch.Group] = ch
	}

	// Event ids first so actions can refer to events of later phases.
	for _, ph := range enc.Phases {
		for _, ev := range ph.Events {
			name := strings.TrimSpace(ev.Name)
			if name == "" {
				continue
			}
			if _, ok := c.plan.byName[name]; !ok {
				c.plan.names = append(c.plan.names, name)
				c.plan.byName[name] = encounter.EventID(len(c.plan.names))
			}
		}
	}

	for i, ph := range enc.Phases {
		if ph.ID < 1 || ph.ID > int(encounter.MaxPhase) {
			continue
		}
		c.compilePhase(fmt.Sprintf("phases[%d]", i), ph)
	}
	slices.SortFunc(c.plan.Phases, func(a, b *Phase) int { return int(a.ID) - int(b.ID) })

	for _, name := range names {
		c.compileChain(name, enc.Chains[name])
	}
}

func (c *compiler) compilePhase(path string, def PhaseDef) {
	ph := &Phase{
		ID:      encounter.Phase(def.ID),
		Name:    def.Name,
		OnEnter: c.actions(path+".on_enter", def.OnEnter),
	}
	for i, evDef := range def.Events {
		ev := c.compileEvent(fmt.Sprintf("%s.events[%d]", path, i), def.ID, evDef)
		if ev == nil {
			continue
		}
		for _, other := range c.plan.events {
			if other.ID == ev.ID && other.Mask.Overlaps(ev.Mask) {
				c.errorf("%s: event %q already defined for overlapping phases %s", path, ev.Name, other.Mask)
			}
		}
		ph.Events = append(ph.Events, ev)
		c.plan.events = append(c.plan.events, ev)
	}
	c.plan.Phases = append(c.plan.Phases, ph)
}

func (c *compiler) compileEvent(path string, phase int, def EventDef) *Event {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		c.errorf("%s: name is required", path)
		return nil
	}
	after, err := parseOffset(path+".after", def.After)
	if err != nil {
		c.errs = append(c.errs, err)
	}
	r, err := ParseRepeat(def.Repeat)
	if err != nil {
		c.errorf("%s.repeat: %w", path, err)
	}

	phases := def.Phases
	if len(phases) == 0 {
		phases = []int{phase}
	}
	var mask encounter.Mask
	for _, p := range phases {
		if !c.phases[p] {
			c.errorf("%s.phases: unknown phase %d", path, p)
			continue
		}
		mask |= encounter.Phases(encounter.Phase(p))
	}

	if len(def.Do) == 0 {
		c.errorf("%s: no actions", path)
	}
	return &Event{
		ID:         c.plan.byName[name],
		Name:       name,
		After:      after,
		Repeat:     r,
		Mask:       mask,
		Persistent: def.Persistent,
		Actions:    c.actions(path+".do", def.Do),
	}
}

func (c *compiler) compileChain(name string, def ChainDef) {
	ch := c.plan.Chains[name]
	path := fmt.Sprintf("chains.%s", name)
	if len(def.Steps) == 0 {
		c.errorf("%s: no steps", path)
	}
	var prev time.Duration
	for i, st := range def.Steps {
		at, err := parseOffset(fmt.Sprintf("%s.steps[%d].at", path, i), st.At)
		if err != nil {
			c.errs = append(c.errs, err)
			continue
		}
		if at < prev {
			c.errorf("%s.steps[%d]: at %s is before the previous step (%s)", path, i, at, prev)
		}
		prev = at
		ch.Steps = append(ch.Steps, Step{At: at, Actions: c.actions(fmt.Sprintf("%s.steps[%d].do", path, i), st.Do)})
	}
}

func (c *compiler) actions(path string, defs []ActionDef) []Action {
	out := make([]Action, 0, len(defs))
	for i, def := range defs {
		if a, ok := c.action(fmt.Sprintf("%s[%d]", path, i), def); ok {
			out = append(out, a)
		}
	}
	return out
}

func (c *compiler) action(path string, def ActionDef) (Action, bool) {
	set := 0
	var a Action
	if s := strings.TrimSpace(def.Cast); s != "" {
		set++
		a = Action{Kind: ActCast, Name: s}
	}
	if s := strings.TrimSpace(def.Say); s != "" {
		set++
		a = Action{Kind: ActSay, Name: s}
	}
	if def.EnterPhase != 0 {
		set++
		a = Action{Kind: ActEnterPhase, Phase: encounter.Phase(def.EnterPhase)}
		if !c.phases[def.EnterPhase] {
			c.errorf("%s.enter_phase: unknown phase %d", path, def.EnterPhase)
		}
	}
	if def.End {
		set++
		a = Action{Kind: ActEnd}
	}
	if s := strings.TrimSpace(def.Chain); s != "" {
		set++
		a = Action{Kind: ActChain, Name: s}
		if ch, ok := c.plan.Chains[s]; ok {
			a.Group = ch.Group
		} else {
			c.errorf("%s.chain: unknown chain %q", path, s)
		}
	}
	if len(def.Cancel) > 0 {
		set++
		a = Action{Kind: ActCancel}
		for _, name := range def.Cancel {
			id, ok := c.plan.byName[strings.TrimSpace(name)]
			if !ok {
				c.errorf("%s.cancel: unknown event %q", path, name)
				continue
			}
			a.Events = append(a.Events, id)
		}
	}
	if s := strings.TrimSpace(def.CancelChain); s != "" {
		set++
		a = Action{Kind: ActCancelChain, Name: s}
		if ch, ok := c.plan.Chains[s]; ok {
			a.Group = ch.Group
		} else {
			c.errorf("%s.cancel_chain: unknown chain %q", path, s)
		}
	}
	if def.Spawn != nil {
		set++
		a = Action{Kind: ActSpawn, Spawn: c.spawn(path+".spawn", *def.Spawn)}
		a.Name = a.Spawn.Name
	}

	switch set {
	case 0:
		c.errorf("%s: empty action", path)
		return Action{}, false
	case 1:
		return a, true
	default:
		c.errorf("%s: action sets %d fields, want exactly one", path, set)
		return Action{}, false
	}
}

func (c *compiler) spawn(path string, def SpawnDef) Spawn {
	sp := Spawn{
		Kind:  strings.TrimSpace(def.Kind),
		Name:  strings.TrimSpace(def.Name),
		Count: def.Count,
	}
	if sp.Kind == "" {
		c.errorf("%s.kind is required", path)
	}
	if sp.Name == "" {
		sp.Name = sp.Kind
	}
	if sp.Count <= 0 {
		sp.Count = 1
	}
	life, err := parseOffset(path+".lifetime", def.Lifetime)
	if err != nil {
		c.errs = append(c.errs, err)
	}
	sp.Lifetime = life
	return sp
}
