package eventmap

import (
	"math/bits"
	"strconv"
	"strings"
)

// Phase identifies one stage of a timeline. 0 means "no phase".
type Phase uint8

// MaxPhase is the highest phase a Mask can represent.
const MaxPhase Phase = 64

// Mask is a set of phases. The zero mask means "always active".
type Mask uint64

// Phases builds a mask from phase ids. Phase 0 and phases above MaxPhase
// contribute nothing, so a list of only such ids yields the always mask.
func Phases(ps ...Phase) Mask {
	var m Mask
	for _, p := range ps {
		if p == 0 || p > MaxPhase {
			continue
		}
		m |= 1 << (p - 1)
	}
	return m
}

// Has reports whether p is in the mask. Phase 0 is never in a mask.
func (m Mask) Has(p Phase) bool {
	if p == 0 || p > MaxPhase {
		return false
	}
	return m&(1<<(p-1)) != 0
}

// Always reports whether the mask is the "every phase" mask.
func (m Mask) Always() bool { return m == 0 }

// ActiveIn reports whether an event with this mask may fire in phase p.
func (m Mask) ActiveIn(p Phase) bool { return m == 0 || m.Has(p) }

// Overlaps reports whether two masks share at least one phase.
// The zero mask overlaps everything.
func (m Mask) Overlaps(o Mask) bool { return m == 0 || o == 0 || m&o != 0 }

// List returns the phases in the mask in ascending order.
func (m Mask) List() []Phase {
	out := make([]Phase, 0, bits.OnesCount64(uint64(m)))
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, Phase(bits.TrailingZeros64(v)+1))
	}
	return out
}

func (m Mask) String() string {
	if m == 0 {
		return "always"
	}
	ps := m.List()
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = strconv.Itoa(int(p))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
