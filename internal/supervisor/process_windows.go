package supervisor

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Windows has no process groups in the POSIX sense; taskkill /T kills the
// whole process tree instead.
func setProcessGroup(cmd *exec.Cmd) {}

func terminateGroup(pid int) {
	exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

func killGroup(pid int) {
	exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
	if proc, err := os.FindProcess(pid); err == nil {
		proc.Kill()
	}
}

func sweepByName(pattern string) {
	// taskkill matches image names, not command lines; use the command word.
	name := pattern
	if i := strings.IndexByte(pattern, ' '); i > 0 {
		name = pattern[:i]
	}
	exec.Command("taskkill", "/F", "/IM", name+".exe").Run()
}
