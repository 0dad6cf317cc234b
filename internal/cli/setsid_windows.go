//go:build windows

package cli

import "os/exec"

func setSysProcAttr(cmd *exec.Cmd) {
	// No session detach on Windows; the daemon keeps running after the parent exits.
}
