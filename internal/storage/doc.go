// Package storage persists the action journal of simulation runs.
//
// Every action an actor performs (casts, lines, phase changes, ends) is
// appended as a Record tagged with the run id. Records can be read back per
// run for the `journal` command.
package storage
