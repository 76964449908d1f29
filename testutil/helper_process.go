package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// HelperProcessEnv, when set in a test binary's environment, turns the
// binary into a small scripted helper (see RunHelperProcessIfRequested).
const HelperProcessEnv = "SHUTDOWNCHECK_HELPER_PROCESS"

// Helper behaviors. Arguments are the process arguments.
const (
	// HelperEcho writes its arguments to stdout, one per line.
	HelperEcho = "echo"
	// HelperStderr writes its arguments to stderr, one per line.
	HelperStderr = "stderr"
	// HelperExit exits with the code given as the first argument.
	HelperExit = "exit"
	// HelperPrintEnv prints the value of each named variable.
	HelperPrintEnv = "printenv"
	// HelperPwd prints the working directory.
	HelperPwd = "pwd"
	// HelperSleep sleeps for an hour.
	HelperSleep = "sleep"
	// HelperSpawnChild starts a sleeping copy of itself, prints its pid
	// and sleeps.
	HelperSpawnChild = "spawn-child"
	// HelperOrphan starts a sleeping copy of itself that shares its stdout
	// and stderr, prints its pid and exits 7 without waiting for it.
	HelperOrphan = "orphan"
)

// RunHelperProcessIfRequested runs the scripted helper and exits when
// HelperProcessEnv is set; otherwise it returns immediately.
func RunHelperProcessIfRequested() {
	mode := os.Getenv(HelperProcessEnv)
	if mode == "" {
		return
	}
	os.Exit(runHelper(mode, os.Args[1:]))
}

func runHelper(mode string, args []string) int {
	switch mode {
	case HelperEcho:
		for _, arg := range args {
			fmt.Fprintln(os.Stdout, arg)
		}
	case HelperStderr:
		for _, arg := range args {
			fmt.Fprintln(os.Stderr, arg)
		}
	case HelperExit:
		if len(args) == 0 {
			return 0
		}
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return 2
		}
		return code
	case HelperPrintEnv:
		for _, name := range args {
			fmt.Fprintf(os.Stdout, "%s=%s\n", name, os.Getenv(name))
		}
	case HelperPwd:
		wd, err := os.Getwd()
		if err != nil {
			return 1
		}
		fmt.Fprintln(os.Stdout, wd)
	case HelperSleep:
		time.Sleep(time.Hour)
	case HelperSpawnChild:
		child := exec.Command(os.Args[0])
		child.Env = append(withoutHelperEnv(os.Environ()), HelperProcessEnv+"="+HelperSleep)
		if err := child.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintln(os.Stdout, child.Process.Pid)
		time.Sleep(time.Hour)
	case HelperOrphan:
		child := exec.Command(os.Args[0])
		child.Env = append(withoutHelperEnv(os.Environ()), HelperProcessEnv+"="+HelperSleep)
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintln(os.Stdout, child.Process.Pid)
		return 7
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode '%s'\n", mode)
		return 2
	}
	return 0
}

func withoutHelperEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if !strings.HasPrefix(kv, HelperProcessEnv+"=") {
			out = append(out, kv)
		}
	}
	return out
}
