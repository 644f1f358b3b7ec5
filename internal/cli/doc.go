// Package cli implements the phasebot command tree.
//
// Commands:
//
//	run       Run the encounter (simulated, or --realtime)
//	validate  Check an encounter timeline
//	journal   List journaled runs or print one run's actions
package cli
