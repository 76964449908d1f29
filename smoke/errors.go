package smoke

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/pkg/errors"
)

// Stage names a step of a scenario.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageAllocate  Stage = "allocate"
	StageSpawn     Stage = "spawn"
	StageReadiness Stage = "readiness"
	StageShutdown  Stage = "shutdown"
	StageCleanup   Stage = "cleanup"
)

// diagnosticError is implemented by every error a scenario returns.
type diagnosticError interface {
	error
	Diagnostics() subprocess.OutputSnapshot
}

// Diagnostics returns the output captured by the process at the time err
// was produced, if err (or anything it wraps) carries it.
func Diagnostics(err error) (subprocess.OutputSnapshot, bool) {
	var de diagnosticError
	if errors.As(err, &de) {
		return de.Diagnostics(), true
	}
	return subprocess.OutputSnapshot{}, false
}

// ProcessExitedEarlyError means the process terminated before it accepted
// a connection.
type ProcessExitedEarlyError struct {
	Address string
	Outcome subprocess.ExitOutcome
	Output  subprocess.OutputSnapshot
}

func (e *ProcessExitedEarlyError) Error() string {
	return formatFailure("ProcessExitedEarlyError",
		fmt.Sprintf("process exited before accepting connections on %s", e.Address),
		e.Outcome.String(), e.Output)
}

func (e *ProcessExitedEarlyError) Diagnostics() subprocess.OutputSnapshot { return e.Output }

// TimedOutError means a stage did not finish within its time limit.
type TimedOutError struct {
	Stage   Stage
	Address string
	Timeout time.Duration
	Output  subprocess.OutputSnapshot
}

func (e *TimedOutError) Error() string {
	var summary string
	switch e.Stage {
	case StageReadiness:
		summary = fmt.Sprintf("process did not accept connections on %s within %s", e.Address, e.Timeout)
	default:
		summary = fmt.Sprintf("%s did not complete within %s", e.Stage, e.Timeout)
	}
	return formatFailure("TimedOutError", summary, "process still running", e.Output)
}

func (e *TimedOutError) Diagnostics() subprocess.OutputSnapshot { return e.Output }

// UnexpectedExitError means the process terminated after being signaled,
// but not in a way that counts as graceful.
type UnexpectedExitError struct {
	Signal  syscall.Signal
	Outcome subprocess.ExitOutcome
	Output  subprocess.OutputSnapshot
}

func (e *UnexpectedExitError) Error() string {
	return formatFailure("UnexpectedExitError",
		fmt.Sprintf("process did not shut down gracefully after %s (%d)", e.Signal, int(e.Signal)),
		e.Outcome.String(), e.Output)
}

func (e *UnexpectedExitError) Diagnostics() subprocess.OutputSnapshot { return e.Output }

// CanceledError means the scenario's context ended during a stage.
type CanceledError struct {
	Stage  Stage
	Cause  error
	Output subprocess.OutputSnapshot
}

func (e *CanceledError) Error() string {
	return formatFailure("CanceledError",
		fmt.Sprintf("scenario canceled during %s: %v", e.Stage, e.Cause),
		"unknown", e.Output)
}

func (e *CanceledError) Unwrap() error { return e.Cause }

func (e *CanceledError) Diagnostics() subprocess.OutputSnapshot { return e.Output }

// ScenarioError attaches a stage and the captured output to an error that
// does not carry them itself, such as an *subprocess.AllocationError or a
// *subprocess.SpawnError.
type ScenarioError struct {
	Stage  Stage
	Cause  error
	Output subprocess.OutputSnapshot
}

func (e *ScenarioError) Error() string {
	return formatFailure("ScenarioError",
		fmt.Sprintf("%s failed: %v", e.Stage, e.Cause),
		"n/a", e.Output)
}

func (e *ScenarioError) Unwrap() error { return e.Cause }

func (e *ScenarioError) Diagnostics() subprocess.OutputSnapshot { return e.Output }

func formatFailure(class, summary, observed string, output subprocess.OutputSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", class, summary)
	fmt.Fprintf(&b, "observed: %s\n", observed)
	writeStream(&b, "stdout", output.Stdout)
	writeStream(&b, "stderr", output.Stderr)
	return strings.TrimRight(b.String(), "\n")
}

func writeStream(b *strings.Builder, name, text string) {
	fmt.Fprintf(b, "--- %s ---\n", name)
	if text == "" {
		b.WriteString("(empty)\n")
		return
	}
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
}
