package compose

import (
	"fmt"

	"github.com/tturner/mbcompose/internal/modbus"
)

// OverlapError reports two write addresses that claim shared memory.
type OverlapError struct {
	Target Target
	First  Address
	Second Address
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("address %d (%s, %d registers) overlaps address %d (%s, %d registers) on %s",
		e.Second.Address(), e.Second.Type(), e.Second.Size(),
		e.First.Address(), e.First.Type(), e.First.Size(),
		e.Target)
}

func (e *OverlapError) Unwrap() error { return modbus.ErrOverlap }

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", modbus.ErrConfiguration, fmt.Sprintf(format, args...))
}
