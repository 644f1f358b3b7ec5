// Package timeline loads data-driven encounter definitions.
//
// A definition lists phases, the events each phase arms on entry, named task
// chains and the actions events and chain steps perform. Definitions are YAML
// (JSON works too) and compile into a Plan that scripts install on an
// encounter.Scheduler.
//
// Repeat strings:
//   - "" or "once": fire once
//   - "30s": fixed interval
//   - "5s..10s": random interval in the inclusive range
//   - "31.9s,28s,29.9s": consumed in order, the last one reused forever
package timeline
