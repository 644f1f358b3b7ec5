// Package taskchain runs anonymous delayed callbacks ("continuations") on a
// logical clock.
//
// A continuation may schedule follow-ups relative to its own due time through
// its Context, which is how multi-step sequences are expressed:
//
//	s.Schedule(1204*time.Millisecond, func(tc *taskchain.Context) {
//		emote()
//		tc.ScheduleRelative(time.Second, func(tc *taskchain.Context) {
//			cast()
//		})
//	})
//
// Anything scheduled while a dispatch is running waits for the next dispatch,
// even if it is already due. A scheduler-wide validator guards every firing.
package taskchain
