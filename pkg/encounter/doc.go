// Package encounter bundles the logical clock, the phase-aware event queue,
// the continuation scheduler and the phase controller into one per-actor
// scheduler.
//
// A Scheduler is single-threaded. The owner calls Tick(delta) once per update;
// each tick first drains due events through their registered handlers and then
// dispatches due continuations. Handlers and continuations may freely
// schedule, cancel, switch phases or end the encounter from inside a tick.
//
//	s := encounter.New(encounter.Config{Name: "boss"}, log, nil)
//	s.OnPhaseEnter(1, func(encounter.Phase) {
//		_ = s.ScheduleEvent(evSmash, 5*time.Second, encounter.Phases(1), encounter.Every(10*time.Second))
//	})
//	s.HandleEvent(evSmash, func(ec *encounter.EventContext) { ... })
//	_ = s.EnterPhase(1)
//	for ... { _ = s.Tick(100 * time.Millisecond) }
package encounter
