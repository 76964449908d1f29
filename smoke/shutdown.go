package smoke

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// ShutdownOptions configure VerifyGracefulShutdown.
type ShutdownOptions struct {
	// Signal is sent to the process; defaults to SIGTERM.
	Signal syscall.Signal
	// Timeout bounds the wait for the process to exit. Zero waits until the
	// context ends.
	Timeout time.Duration
	Trace   *Trace
}

// IsGracefulExit reports whether outcome is an acceptable response to sent:
// exit code 0 (whatever signal is also reported), or no exit code together
// with the very signal that was sent.
func IsGracefulExit(outcome subprocess.ExitOutcome, sent syscall.Signal) bool {
	if outcome.HasCode() {
		return outcome.ExitedWith(0)
	}
	return outcome.Signaled() && outcome.Signal == sent
}

// VerifyGracefulShutdown signals the process, waits for it to exit and
// classifies the outcome. A non-graceful exit is an *UnexpectedExitError.
// The outcome is returned whenever the process exited.
func VerifyGracefulShutdown(ctx context.Context, proc ProcessHandle, opts ShutdownOptions) (subprocess.ExitOutcome, error) {
	sig := opts.Signal
	if sig == 0 {
		sig = syscall.SIGTERM
	}

	if err := proc.Signal(sig); err != nil {
		if !errors.Is(err, os.ErrProcessDone) {
			return subprocess.ExitOutcome{}, &ScenarioError{
				Stage:  StageShutdown,
				Cause:  err,
				Output: proc.Output().Snapshot(),
			}
		}
		outcome, _ := proc.Outcome()
		opts.Trace.Record(EventExitedBeforeSignal, outcome.String())
		grip.Warning(message.Fields{
			"message": "process exited on its own before it could be signaled",
			"pid":     proc.PID(),
			"signal":  sig.String(),
			"outcome": outcome.String(),
		})
	} else {
		opts.Trace.Record(EventSignaled, sig.String())
		grip.Info(message.Fields{
			"message": "sent termination signal",
			"pid":     proc.PID(),
			"signal":  sig.String(),
		})
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	_, waitErr := proc.Wait(waitCtx)
	outcome, exited := proc.Outcome()
	if !exited {
		if ctx.Err() != nil {
			return subprocess.ExitOutcome{}, &CanceledError{Stage: StageShutdown, Cause: ctx.Err(), Output: proc.Output().Snapshot()}
		}
		return subprocess.ExitOutcome{}, &TimedOutError{Stage: StageShutdown, Timeout: opts.Timeout, Output: proc.Output().Snapshot()}
	}
	grip.Warning(message.WrapError(waitErr, message.Fields{
		"message": "problem waiting for process output after exit",
		"pid":     proc.PID(),
	}))
	opts.Trace.Record(EventExited, outcome.String())

	if IsGracefulExit(outcome, sig) {
		grip.Info(message.Fields{
			"message": "process shut down gracefully",
			"pid":     proc.PID(),
			"outcome": outcome.String(),
		})
		return outcome, nil
	}

	return outcome, &UnexpectedExitError{
		Signal:  sig,
		Outcome: outcome,
		Output:  proc.Output().Snapshot(),
	}
}
