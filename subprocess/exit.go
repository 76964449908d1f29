package subprocess

import (
	"fmt"
	"os"
	"syscall"
)

// ExitOutcome is how a process terminated. A process killed directly by a
// signal has no exit code; a process that exited normally has no signal.
type ExitOutcome struct {
	Code   *int
	Signal syscall.Signal
}

// HasCode reports whether the process exited with a numeric code.
func (o ExitOutcome) HasCode() bool { return o.Code != nil }

// Signaled reports whether a terminating signal was reported.
func (o ExitOutcome) Signaled() bool { return o.Signal != 0 }

// ExitedWith reports whether the process exited with exactly code.
func (o ExitOutcome) ExitedWith(code int) bool { return o.Code != nil && *o.Code == code }

func (o ExitOutcome) String() string {
	code := "<none>"
	if o.Code != nil {
		code = fmt.Sprint(*o.Code)
	}
	sig := "<none>"
	if o.Signal != 0 {
		sig = fmt.Sprintf("%s (%d)", o.Signal, int(o.Signal))
	}
	return fmt.Sprintf("code=%s signal=%s", code, sig)
}

// ExitCode builds an outcome for a normal exit.
func ExitCode(code int) ExitOutcome { return ExitOutcome{Code: &code} }

// KilledBy builds an outcome for a process terminated by sig.
func KilledBy(sig syscall.Signal) ExitOutcome { return ExitOutcome{Signal: sig} }

func outcomeFromState(state *os.ProcessState) ExitOutcome {
	if state == nil {
		return ExitOutcome{}
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return KilledBy(status.Signal())
	}
	return ExitCode(state.ExitCode())
}
