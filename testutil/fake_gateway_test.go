package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/evergreen-ci/shutdowncheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setGatewayEnv(t *testing.T, port int) {
	stateDir := t.TempDir()
	configPath := filepath.Join(stateDir, "gateway.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf("gateway:\n  mode: local\n  port: %d\n", port)), 0600))

	for name, value := range map[string]string{
		shutdowncheck.EnvNoRespawn:                "1",
		shutdowncheck.EnvSkipChannels:             "1",
		shutdowncheck.EnvSkipBrowserControlServer: "1",
		shutdowncheck.EnvSkipCanvasHost:           "1",
		shutdowncheck.EnvBridgeHost:               shutdowncheck.LoopbackHost,
		shutdowncheck.EnvBridgePort:               "0",
		shutdowncheck.EnvStateDir:                 stateDir,
		shutdowncheck.EnvConfigPath:               configPath,
	} {
		t.Setenv(shutdowncheck.EnvName(shutdowncheck.DefaultEnvPrefix, name), value)
	}
}

func gatewayArgs(port int) []string {
	return []string{"gateway", "--port", strconv.Itoa(port), "--bind", "loopback", "--allow-unconfigured"}
}

func TestCheckGatewayInvocation(t *testing.T) {
	for testName, testCase := range map[string]func(t *testing.T){
		"AcceptsCompleteInvocation": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			port, err := checkGatewayInvocation(gatewayArgs(4321))
			require.NoError(t, err)
			assert.Equal(t, 4321, port)
		},
		"RejectsMissingCommand": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			_, err := checkGatewayInvocation(gatewayArgs(4321)[1:])
			assert.Error(t, err)
		},
		"RejectsOtherBindMode": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			args := gatewayArgs(4321)
			args[4] = "lan"
			_, err := checkGatewayInvocation(args)
			assert.Error(t, err)
		},
		"RejectsMissingAllowUnconfigured": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			_, err := checkGatewayInvocation(gatewayArgs(4321)[:5])
			assert.Error(t, err)
		},
		"RejectsPortMismatch": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			_, err := checkGatewayInvocation(gatewayArgs(1234))
			assert.Error(t, err)
		},
		"RejectsRespawning": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			t.Setenv(shutdowncheck.EnvName(shutdowncheck.DefaultEnvPrefix, shutdowncheck.EnvNoRespawn), "0")
			_, err := checkGatewayInvocation(gatewayArgs(4321))
			assert.Error(t, err)
		},
		"RejectsMissingStateDir": func(t *testing.T) {
			setGatewayEnv(t, 4321)
			t.Setenv(shutdowncheck.EnvName(shutdowncheck.DefaultEnvPrefix, shutdowncheck.EnvStateDir), filepath.Join(t.TempDir(), "gone"))
			_, err := checkGatewayInvocation(gatewayArgs(4321))
			assert.Error(t, err)
		},
	} {
		t.Run(testName, testCase)
	}
}

func TestFakeGatewayCrash(t *testing.T) {
	setGatewayEnv(t, 4321)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	assert.Equal(t, 7, runFakeGateway(FakeGatewayCrash, gatewayArgs(4321), stdout, stderr))
	assert.Contains(t, stdout.String(), "gateway starting on port 4321")
	assert.Contains(t, stderr.String(), "fatal: gateway crashed during startup")
}

func TestFakeGatewayBadInvocation(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	assert.Equal(t, fakeGatewayBadInvocation, runFakeGateway(FakeGatewayGraceful, []string{"serve"}, stdout, stderr))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "invalid gateway invocation")
}
