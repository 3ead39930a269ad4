package engine

import (
	"errors"
	"fmt"
)

var (
	ErrZoneHasActiveVoices = errors.New("engine: zone still has active voices")
	ErrStructureNotLocked  = errors.New("engine: structural edit without the structure lock")
	ErrNoSuchPart          = errors.New("engine: no such part")
	ErrNoSuchGroup         = errors.New("engine: no such group")
	ErrNoSuchZone          = errors.New("engine: no such zone")
	ErrNoSuchVariant       = errors.New("engine: no such variant")
	ErrCapacity            = errors.New("engine: capacity exceeded")
	ErrAlreadyAttached     = errors.New("engine: already attached")
)

// assertf panics in builds with the samplerdebug tag. Release builds rely on
// the caller returning an error instead.
func assertf(cond bool, format string, args ...any) {
	if debugAssertions && !cond {
		panic(fmt.Sprintf("engine assertion: "+format, args...))
	}
}
