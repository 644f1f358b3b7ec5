package script

import (
	"time"

	"phasebot/pkg/encounter"
	"phasebot/pkg/logx"
)

const KindAdd = "add"

const (
	evLeap encounter.EventID = iota + 1
	evClaws
)

// Add is a minion with a fixed-interval leap and a jittered melee ability.
// It despawns itself after its lifetime when one is set.
type Add struct {
	name     string
	lifetime time.Duration
}

func NewAdd(def Def) *Add { return &Add{name: def.Name, lifetime: def.Lifetime} }

func (a *Add) Kind() string { return KindAdd }

func (a *Add) Attach(h Host) error {
	s := h.Scheduler()
	log := h.Logger()

	s.HandleEvent(evLeap, func(ec *encounter.EventContext) {
		h.Emit(Emit{Type: EmitCast, Name: "necrotic_claws_leap"})
		if err := ec.Repeat(10 * time.Second); err != nil {
			log.Debug("leap repeat failed", logx.Err(err))
		}
	})
	s.HandleEvent(evClaws, func(ec *encounter.EventContext) {
		h.Emit(Emit{Type: EmitCast, Name: "necrotic_claws", Target: h.Owner()})
		if err := ec.RepeatBetween(5*time.Second, 10*time.Second); err != nil {
			log.Debug("claws repeat failed", logx.Err(err))
		}
	})

	if err := s.ScheduleEvent(evLeap, time.Second, 0, encounter.Once()); err != nil {
		return err
	}
	if err := s.ScheduleEvent(evClaws, 10*time.Second, 0, encounter.Once()); err != nil {
		return err
	}
	if a.lifetime > 0 {
		self := h.ID()
		return s.ScheduleTask(a.lifetime, func(*encounter.TaskContext) { h.Despawn(self) })
	}
	return nil
}
