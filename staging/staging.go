// Package staging places the sidecar bundle into the
// application's build output. Staging is best-effort:
// the sidecar is an optional enhancement and a failed
// stage must never fail the host application's build,
// so every error is caught and logged here.
package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/appstack-tools/metering-sidecar/bundle"
	"github.com/appstack-tools/metering-sidecar/envcfg"
)

// Stage copies the sidecar bundle from bundleSourceRoot
// into buildRoot when metering is enabled, marks the
// entry script executable, and writes the derived
// configuration. cacheRoot is accepted for call-site
// compatibility and unused. Stage never returns an
// error or panics past this boundary.
func Stage(
	env envcfg.Env,
	bundleSourceRoot string,
	buildRoot string,
	cacheRoot string,
) {
	defer func() {
		if r := recover(); r != nil {
			slog.Info(
				"staging the metering sidecar"+
					" did not complete,"+
					" continuing the build",
				"panic", r,
			)
		}
	}()

	if !env.MeteringEnabled() {
		slog.Info("usage metering is not enabled")

		return
	}

	slog.Info(
		"usage metering is enabled," +
			" deploying the sidecar",
	)

	installDir, err := installBundle(
		bundleSourceRoot, buildRoot,
	)
	if err != nil {
		slog.Error(
			"staging the metering sidecar",
			"error", err,
		)

		return
	}

	writeDerivedConfig(buildRoot, installDir)
}

// installBundle copies the bundle into the build output
// and marks the entry script executable. Returns the
// install directory.
func installBundle(
	bundleSourceRoot string,
	buildRoot string,
) (string, error) {
	const errCtx = "installing bundle"

	source := filepath.Join(
		bundleSourceRoot, bundle.SourceDir,
	)

	if _, err := os.Stat(source); errors.Is(
		err, os.ErrNotExist,
	) {
		return "", fmt.Errorf(
			"%s: bundle source not found at %s",
			errCtx, source,
		)
	}

	target := filepath.Join(
		buildRoot, bundle.Namespace,
	)

	slog.Info(
		"copying sidecar bundle",
		"from", source,
		"to", target,
	)

	// Remove any previous stage so a restage is
	// byte-identical to a first stage.
	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := copyTree(source, target); err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	manifest, err := bundle.ReadManifest(target)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	script := filepath.Join(target, manifest.Entry)

	if err := os.Chmod(script, 0o755); err != nil { //nolint:gosec // entry must be executable
		return "", fmt.Errorf(
			"%s: marking %s executable: %w",
			errCtx, manifest.Entry, err,
		)
	}

	slog.Info(
		"marked entry script executable",
		"entry", manifest.Entry,
	)

	return target, nil
}

// writeDerivedConfig derives the project ID from build
// metadata and persists it into the staged bundle.
// Best-effort: a sidecar without a project ID is still
// a valid stage.
func writeDerivedConfig(
	buildRoot string,
	installDir string,
) {
	projectID, err := bundle.ProjectID(
		filepath.Join(buildRoot, bundle.MetadataFile),
	)
	if err != nil {
		slog.Warn(
			"could not derive project id",
			"error", err,
		)

		return
	}

	cfg := bundle.Config{ProjectID: projectID}

	if err := bundle.WriteConfig(
		installDir, cfg,
	); err != nil {
		slog.Warn(
			"could not write sidecar configuration",
			"error", err,
		)

		return
	}

	slog.Info(
		"wrote sidecar configuration",
		"project_id", projectID,
	)
}
