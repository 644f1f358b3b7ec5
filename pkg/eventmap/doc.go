// Package eventmap holds named, phase-scoped timer entries.
//
// A Queue stores events keyed by a small integer id. Each event carries a
// phase mask and an optional repeat spec. Due events are popped in due-time
// order with FIFO tie-break by (re)arm order through Queue.Due, which is meant
// to be ranged over once per tick:
//
//	for ev := range q.Due() {
//		switch ev.ID {
//		case evHopebreaker:
//			...
//		}
//	}
//
// Only events whose mask intersects the current phase fire. Mask 0 means the
// event is active in every phase, including before any phase was entered.
package eventmap
