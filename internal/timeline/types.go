package timeline

// Encounter is the on-disk definition.
type Encounter struct {
	Name   string              `yaml:"name"`
	Phases []PhaseDef          `yaml:"phases"`
	Chains map[string]ChainDef `yaml:"chains,omitempty"`
}

type PhaseDef struct {
	ID      int         `yaml:"id"`
	Name    string      `yaml:"name,omitempty"`
	OnEnter []ActionDef `yaml:"on_enter,omitempty"`
	Events  []EventDef  `yaml:"events"`
}

type EventDef struct {
	Name   string `yaml:"name"`
	After  string `yaml:"after"`
	Repeat string `yaml:"repeat,omitempty"`
	// Phases overrides the phases the event is active in. Defaults to the
	// enclosing phase.
	Phases     []int       `yaml:"phases,omitempty"`
	Persistent bool        `yaml:"persistent,omitempty"`
	Do         []ActionDef `yaml:"do"`
}

// ChainDef is a sequence of steps run as continuations in one group.
type ChainDef struct {
	Steps []StepDef `yaml:"steps"`
}

type StepDef struct {
	// At is the offset from the start of the chain. Steps must be ordered.
	At string      `yaml:"at"`
	Do []ActionDef `yaml:"do"`
}

// ActionDef sets exactly one field.
type ActionDef struct {
	Cast        string    `yaml:"cast,omitempty"`
	Say         string    `yaml:"say,omitempty"`
	EnterPhase  int       `yaml:"enter_phase,omitempty"`
	End         bool      `yaml:"end,omitempty"`
	Chain       string    `yaml:"chain,omitempty"`
	Cancel      []string  `yaml:"cancel,omitempty"`
	CancelChain string    `yaml:"cancel_chain,omitempty"`
	Spawn       *SpawnDef `yaml:"spawn,omitempty"`
}

type SpawnDef struct {
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name"`
	Count    int    `yaml:"count,omitempty"`
	Lifetime string `yaml:"lifetime,omitempty"`
}
