// Package launch starts the staged metering sidecar as
// a detached child process at application start. The
// launch is fire-and-forget and best-effort: a missing
// or broken sidecar must never fail the application,
// so every error is caught and logged here.
package launch

import (
	"log/slog"

	"github.com/appstack-tools/metering-sidecar/bundle"
	"github.com/appstack-tools/metering-sidecar/envcfg"
)

// DefaultInstallRoot is where the stager places the
// bundle under the platform's application runtime root.
const DefaultInstallRoot = "/home/vcap/app/metering"

// Run re-evaluates enablement, verifies the installed
// bundle, and spawns the sidecar. Enablement is decided
// from the run-time environment, independently of the
// stage-time decision; the install check is the
// authoritative safeguard when the two disagree. Run
// never returns an error or panics past this boundary.
func Run(env envcfg.Env, installRoot string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Info(
				"starting the metering sidecar"+
					" did not complete,"+
					" continuing startup",
				"panic", r,
			)
		}
	}()

	if !env.MeteringEnabled() {
		slog.Info("usage metering is not enabled")

		return
	}

	manifest, err := bundle.ReadManifest(installRoot)
	if err != nil {
		slog.Error(
			"reading bundle manifest",
			"error", err,
		)

		return
	}

	if !bundle.Installed(
		installRoot, manifest.Entry,
	) {
		slog.Error(
			"sidecar is not installed," +
				" refusing to launch",
		)

		return
	}

	environ := env.SidecarEnviron(
		projectID(installRoot),
	)

	handle, err := spawn(installRoot, manifest, environ)
	if err != nil {
		slog.Error(
			"starting the metering sidecar",
			"error", err,
		)

		return
	}

	slog.Info(
		"metering sidecar started",
		"pid", handle.PID(),
	)
}

// projectID reads the project ID back from the staged
// configuration. Absence is not an error.
func projectID(installRoot string) string {
	cfg, err := bundle.ReadConfig(installRoot)
	if err != nil {
		slog.Warn(
			"could not read project id",
			"error", err,
		)

		return ""
	}

	return cfg.ProjectID
}
