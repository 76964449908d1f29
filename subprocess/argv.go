package subprocess

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Invocation is the command line a caller wants to run, before any platform
// adjustments.
type Invocation struct {
	// Interpreter is prepended to the entry point when set.
	Interpreter []string
	// Entry is the executable or script to run.
	Entry string
	Args  []string
}

// BuildArgv returns the argument vector that runs inv on the given
// operating system. The entry point and arguments are always forwarded
// unchanged; only a bootstrap prefix may be added.
//
// On windows a script cannot be handed to CreateProcess directly, so when no
// interpreter is configured, batch files run through cmd.exe, shell scripts
// through sh and JavaScript entry points through node.
func BuildArgv(goos string, inv Invocation) ([]string, error) {
	if inv.Entry == "" {
		return nil, errors.New("invocation has no entry point")
	}

	argv := make([]string, 0, len(inv.Interpreter)+len(inv.Args)+5)
	switch {
	case len(inv.Interpreter) > 0:
		argv = append(argv, inv.Interpreter...)
	case goos == "windows":
		argv = append(argv, windowsBootstrap(inv.Entry)...)
	}

	argv = append(argv, inv.Entry)
	return append(argv, inv.Args...), nil
}

func windowsBootstrap(entry string) []string {
	switch strings.ToLower(filepath.Ext(entry)) {
	case ".cmd", ".bat":
		return []string{"cmd.exe", "/d", "/s", "/c"}
	case ".sh":
		return []string{"sh"}
	case ".js", ".mjs", ".cjs":
		return []string{"node"}
	default:
		return nil
	}
}
