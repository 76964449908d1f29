package subprocess

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitOutcome(t *testing.T) {
	clean := ExitCode(0)
	assert.True(t, clean.HasCode())
	assert.False(t, clean.Signaled())
	assert.True(t, clean.ExitedWith(0))
	assert.False(t, clean.ExitedWith(1))
	assert.Equal(t, "code=0 signal=<none>", clean.String())

	killed := KilledBy(syscall.SIGKILL)
	assert.False(t, killed.HasCode())
	assert.True(t, killed.Signaled())
	assert.False(t, killed.ExitedWith(0))
	assert.Contains(t, killed.String(), "code=<none>")
	assert.Contains(t, killed.String(), "(9)")

	assert.Equal(t, "code=<none> signal=<none>", ExitOutcome{}.String())
}

func TestOutcomeFromNilState(t *testing.T) {
	outcome := outcomeFromState(nil)
	assert.False(t, outcome.HasCode())
	assert.False(t, outcome.Signaled())
}
