// Package logx is phasebot's structured logging: a small value-type Logger
// over zerolog.
//
// Console lines carry a short timestamp and a file:line caller. File sinks
// get JSON. Noisy call sites use Throttled, whose copies share one rate
// limiter. At and Actor stamp lines with world time and actor id.
package logx
