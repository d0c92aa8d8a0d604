//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup makes the worker the leader of its own process group so
// signals reach any children it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGTERM)
}

func killGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
}

// sweepByName force-kills processes whose command line matches the worker
// name. Best-effort: covers races where a handle was lost.
func sweepByName(pattern string) {
	exec.Command("pkill", "-9", "-f", pattern).Run()
}
