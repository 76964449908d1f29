package smoke

import (
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessagesIncludeDiagnostics(t *testing.T) {
	output := subprocess.OutputSnapshot{Stdout: "listening\n", Stderr: "boom"}

	for testName, testCase := range map[string]struct {
		err      error
		class    string
		contains []string
	}{
		"ProcessExitedEarly": {
			err:      &ProcessExitedEarlyError{Address: "127.0.0.1:5000", Outcome: subprocess.ExitCode(7), Output: output},
			class:    "ProcessExitedEarlyError",
			contains: []string{"127.0.0.1:5000", "code=7"},
		},
		"TimedOutReadiness": {
			err:      &TimedOutError{Stage: StageReadiness, Address: "127.0.0.1:5001", Timeout: time.Second, Output: output},
			class:    "TimedOutError",
			contains: []string{"127.0.0.1:5001", "1s"},
		},
		"TimedOutShutdown": {
			err:      &TimedOutError{Stage: StageShutdown, Timeout: 2 * time.Second, Output: output},
			class:    "TimedOutError",
			contains: []string{"shutdown", "2s"},
		},
		"UnexpectedExit": {
			err:      &UnexpectedExitError{Signal: syscall.SIGTERM, Outcome: subprocess.KilledBy(syscall.SIGKILL), Output: output},
			class:    "UnexpectedExitError",
			contains: []string{"code=<none>"},
		},
		"Canceled": {
			err:      &CanceledError{Stage: StageReadiness, Cause: errors.New("deadline"), Output: output},
			class:    "CanceledError",
			contains: []string{"readiness", "deadline"},
		},
		"Scenario": {
			err:      &ScenarioError{Stage: StageSpawn, Cause: errors.New("exec format error"), Output: output},
			class:    "ScenarioError",
			contains: []string{"spawn", "exec format error"},
		},
	} {
		t.Run(testName, func(t *testing.T) {
			msg := testCase.err.Error()
			assert.True(t, strings.HasPrefix(msg, testCase.class+": "), msg)
			for _, s := range testCase.contains {
				assert.Contains(t, msg, s)
			}
			assert.Contains(t, msg, "--- stdout ---\nlistening\n")
			assert.Contains(t, msg, "--- stderr ---\nboom\n")

			snapshot, ok := Diagnostics(errors.Wrap(testCase.err, "running scenario"))
			assert.True(t, ok)
			assert.Equal(t, output, snapshot)
		})
	}
}

func TestEmptyStreamsAreExplicit(t *testing.T) {
	err := &UnexpectedExitError{Signal: syscall.SIGTERM, Outcome: subprocess.ExitCode(1)}
	assert.Contains(t, err.Error(), "--- stdout ---\n(empty)")
	assert.Contains(t, err.Error(), "--- stderr ---\n(empty)")

	snapshot, ok := Diagnostics(err)
	assert.True(t, ok)
	assert.Equal(t, "", snapshot.Stdout)
	assert.Equal(t, "", snapshot.Stderr)
}

func TestDiagnosticsOfForeignError(t *testing.T) {
	_, ok := Diagnostics(errors.New("unrelated"))
	assert.False(t, ok)
	_, ok = Diagnostics(nil)
	assert.False(t, ok)
}
