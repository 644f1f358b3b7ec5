// Package clock provides the logical clock that drives encounter schedulers.
//
// Time only moves when the owner calls Advance with the elapsed simulation
// time of a tick. There is no wall-clock source behind it.
package clock
