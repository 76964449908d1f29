package subprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgv(t *testing.T) {
	args := []string{"gateway", "--port", "1234"}

	for testName, testCase := range map[string]struct {
		goos     string
		inv      Invocation
		expected []string
	}{
		"DirectExecutableOnLinux": {
			goos:     "linux",
			inv:      Invocation{Entry: "/usr/bin/gw", Args: args},
			expected: []string{"/usr/bin/gw", "gateway", "--port", "1234"},
		},
		"ScriptsAreExecutedDirectlyOnDarwin": {
			goos:     "darwin",
			inv:      Invocation{Entry: "./gw.js", Args: args},
			expected: []string{"./gw.js", "gateway", "--port", "1234"},
		},
		"InterpreterIsPrepended": {
			goos:     "linux",
			inv:      Invocation{Interpreter: []string{"node", "--enable-source-maps"}, Entry: "dist/entry.js", Args: args},
			expected: []string{"node", "--enable-source-maps", "dist/entry.js", "gateway", "--port", "1234"},
		},
		"InterpreterWinsOnWindows": {
			goos:     "windows",
			inv:      Invocation{Interpreter: []string{"bun"}, Entry: "entry.ts", Args: args},
			expected: []string{"bun", "entry.ts", "gateway", "--port", "1234"},
		},
		"WindowsBatchFileUsesCmd": {
			goos:     "windows",
			inv:      Invocation{Entry: `C:\tools\gw.CMD`, Args: args},
			expected: []string{"cmd.exe", "/d", "/s", "/c", `C:\tools\gw.CMD`, "gateway", "--port", "1234"},
		},
		"WindowsShellScriptUsesSh": {
			goos:     "windows",
			inv:      Invocation{Entry: "gw.sh", Args: args},
			expected: []string{"sh", "gw.sh", "gateway", "--port", "1234"},
		},
		"WindowsModuleUsesNode": {
			goos:     "windows",
			inv:      Invocation{Entry: "gw.mjs", Args: args},
			expected: []string{"node", "gw.mjs", "gateway", "--port", "1234"},
		},
		"WindowsExecutableIsUnchanged": {
			goos:     "windows",
			inv:      Invocation{Entry: "gw.exe", Args: args},
			expected: []string{"gw.exe", "gateway", "--port", "1234"},
		},
		"NoArgs": {
			goos:     "linux",
			inv:      Invocation{Entry: "gw"},
			expected: []string{"gw"},
		},
	} {
		t.Run(testName, func(t *testing.T) {
			argv, err := BuildArgv(testCase.goos, testCase.inv)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, argv)
		})
	}
}

func TestBuildArgvRequiresEntry(t *testing.T) {
	_, err := BuildArgv("linux", Invocation{Args: []string{"gateway"}})
	assert.Error(t, err)
}

func TestBuildArgvDoesNotModifyInvocation(t *testing.T) {
	inv := Invocation{Interpreter: []string{"node"}, Entry: "gw.js", Args: []string{"a", "b"}}
	_, err := BuildArgv("windows", inv)
	require.NoError(t, err)
	assert.Equal(t, []string{"node"}, inv.Interpreter)
	assert.Equal(t, []string{"a", "b"}, inv.Args)
}
