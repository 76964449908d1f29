package subprocess

import (
	"fmt"
	"strings"
)

// AllocationError is returned when the operating system does not hand out
// a usable ephemeral port.
type AllocationError struct {
	Cause error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("AllocationError: could not allocate an ephemeral port: %v", e.Cause)
}

// SpawnError is returned when the child process could not be started.
type SpawnError struct {
	Argv  []string
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("SpawnError: could not start '%s': %v", strings.Join(e.Argv, " "), e.Cause)
}
