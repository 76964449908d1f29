package operations

import (
	"os"
	"testing"

	"github.com/evergreen-ci/shutdowncheck/testutil"
)

func TestMain(m *testing.M) {
	testutil.RunFakeGatewayIfRequested()
	os.Exit(m.Run())
}
