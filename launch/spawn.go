package launch

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/appstack-tools/metering-sidecar/bundle"
)

// Handle identifies a spawned sidecar process. The
// launcher records the handle but never awaits the
// process.
type Handle struct {
	cmd *exec.Cmd
}

// PID returns the child process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// spawn starts the bundle entry point as a child
// process with the derived environment, working
// directory set to the install root, and no arguments.
// The call returns as soon as the process has started;
// exit status is reaped in the background so the child
// never lingers as a zombie.
func spawn(
	installRoot string,
	manifest bundle.Manifest,
	environ []string,
) (*Handle, error) {
	const errCtx = "spawning sidecar"

	script := filepath.Join(
		installRoot, manifest.Entry,
	)

	var cmd *exec.Cmd

	if manifest.Interpreter != "" {
		cmd = exec.Command( //nolint:gosec // entry from bundle manifest
			manifest.Interpreter, script,
		)
	} else {
		cmd = exec.Command(script) //nolint:gosec // entry from bundle manifest
	}

	cmd.Dir = installRoot
	cmd.Env = environ
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.Info(
		"spawning",
		"entry", script,
		"interpreter", manifest.Interpreter,
		"dir", installRoot,
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn(
				"metering sidecar exited",
				"error", err,
			)
		}
	}()

	return &Handle{cmd: cmd}, nil
}
