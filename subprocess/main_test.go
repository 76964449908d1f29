package subprocess

import (
	"os"
	"testing"

	"github.com/evergreen-ci/shutdowncheck/testutil"
)

func TestMain(m *testing.M) {
	testutil.RunHelperProcessIfRequested()
	os.Exit(m.Run())
}

// helperOptions runs the test binary itself as a scripted helper.
func helperOptions(mode string, args ...string) StartOptions {
	return StartOptions{
		Invocation: Invocation{Entry: os.Args[0], Args: args},
		Env:        MergeEnvironment(os.Environ(), map[string]string{testutil.HelperProcessEnv: mode}),
	}
}
