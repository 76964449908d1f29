package smoke

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/evergreen-ci/shutdowncheck"
	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

// ProcessHandle is the view of a running process the readiness and shutdown
// stages need. *subprocess.Process implements it.
type ProcessHandle interface {
	PID() int
	Outcome() (subprocess.ExitOutcome, bool)
	Done() <-chan struct{}
	Output() *subprocess.OutputCollector
	Signal(os.Signal) error
	Wait(context.Context) (subprocess.ExitOutcome, error)
}

// ReadinessOptions configure WaitForReady. Zero durations use the package
// defaults.
type ReadinessOptions struct {
	Host        string
	Port        int
	Timeout     time.Duration
	Interval    time.Duration
	DialTimeout time.Duration
	Trace       *Trace
}

func (o *ReadinessOptions) setDefaults() {
	if o.Host == "" {
		o.Host = shutdowncheck.LoopbackHost
	}
	if o.Timeout <= 0 {
		o.Timeout = shutdowncheck.DefaultReadyTimeout
	}
	if o.Interval <= 0 {
		o.Interval = shutdowncheck.DefaultPollInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = shutdowncheck.DefaultDialTimeout
	}
}

// WaitForReady polls until a TCP connection to the configured address
// succeeds. Each iteration first checks whether the process has exited, so a
// dead process fails fast with a *ProcessExitedEarlyError instead of waiting
// out the timeout. Failing to connect within the timeout is a
// *TimedOutError; the context ending first is a *CanceledError.
func WaitForReady(ctx context.Context, proc ProcessHandle, opts ReadinessOptions) error {
	opts.setDefaults()
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := &net.Dialer{}

	start := time.Now()
	attempts := 0
	for elapsed := time.Duration(0); elapsed < opts.Timeout; elapsed = time.Since(start) {
		if outcome, exited := proc.Outcome(); exited {
			if _, err := proc.Wait(ctx); err != nil {
				grip.Debug(message.WrapError(err, message.Fields{
					"message": "output of exited process may be incomplete",
					"pid":     proc.PID(),
				}))
			}
			return &ProcessExitedEarlyError{
				Address: addr,
				Outcome: outcome,
				Output:  proc.Output().Snapshot(),
			}
		}

		attempts++
		dialTimeout := opts.DialTimeout
		if remaining := opts.Timeout - elapsed; remaining < dialTimeout {
			dialTimeout = remaining
		}
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := dialer.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			_ = conn.Close()
			opts.Trace.Record(EventReady, addr)
			grip.Info(message.Fields{
				"message":  "process is accepting connections",
				"address":  addr,
				"pid":      proc.PID(),
				"attempts": attempts,
				"elapsed":  time.Since(start).String(),
			})
			return nil
		}

		wait := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return &CanceledError{Stage: StageReadiness, Cause: ctx.Err(), Output: proc.Output().Snapshot()}
		case <-proc.Done():
			// the exit check at the top of the loop reports it
		case <-wait.C:
		}
		wait.Stop()
	}

	grip.Warning(message.Fields{
		"message":  "process never accepted connections",
		"address":  addr,
		"pid":      proc.PID(),
		"attempts": attempts,
		"timeout":  opts.Timeout.String(),
	})

	return &TimedOutError{
		Stage:   StageReadiness,
		Address: addr,
		Timeout: opts.Timeout,
		Output:  proc.Output().Snapshot(),
	}
}
