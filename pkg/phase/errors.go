package phase

import "errors"

// ErrInvalidPhase is returned when entering phase 0 or a phase above
// eventmap.MaxPhase.
var ErrInvalidPhase = errors.New("invalid phase")
