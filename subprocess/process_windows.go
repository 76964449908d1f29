//go:build windows

package subprocess

import "os/exec"

// Windows has no process groups to signal; descendants are found through
// the process tree instead.
func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(int) error { return nil }
