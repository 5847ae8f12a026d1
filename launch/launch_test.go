package launch_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-tools/metering-sidecar/bundle"
	"github.com/appstack-tools/metering-sidecar/envcfg"
	"github.com/appstack-tools/metering-sidecar/launch"
)

// enabledEnv carries a single enablement signal.
func enabledEnv() envcfg.Env {
	return envcfg.Map(map[string]string{
		envcfg.LicenseServerURLVar: "https://ls",
	})
}

// installBundle lays out a launchable bundle whose
// entry script touches marker and exits. Returns the
// install root and the marker path.
func installBundle(
	tb testing.TB,
) (string, string) {
	tb.Helper()

	root := tb.TempDir()
	marker := filepath.Join(root, "spawned")

	script := "#!/bin/sh\ntouch \"" + marker + "\"\n"

	require.NoError(tb, os.WriteFile(
		filepath.Join(root, "run.sh"),
		[]byte(script), 0o755,
	))
	require.NoError(tb, os.MkdirAll(
		filepath.Join(root, bundle.VendorDir),
		0o755,
	))
	require.NoError(tb, os.WriteFile(
		filepath.Join(root, bundle.ManifestFile),
		[]byte("entry: run.sh\ninterpreter: \"\"\n"),
		0o600,
	))

	return root, marker
}

// waitForFile polls until the file exists or the
// deadline passes.
func waitForFile(tb testing.TB, pa string) bool {
	tb.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		if _, err := os.Stat(pa); err == nil {
			return true
		}

		time.Sleep(10 * time.Millisecond)
	}

	return false
}

func TestRun_spawns_installed_sidecar(t *testing.T) {
	t.Parallel()

	root, marker := installBundle(t)

	launch.Run(enabledEnv(), root)

	assert.True(
		t,
		waitForFile(t, marker),
		"entry script never ran",
	)
}

func TestRun_disabled_does_not_spawn(t *testing.T) {
	t.Parallel()

	root, marker := installBundle(t)

	launch.Run(envcfg.Map(nil), root)

	time.Sleep(100 * time.Millisecond)

	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_missing_vendor_blocks_launch(t *testing.T) {
	t.Parallel()

	root, marker := installBundle(t)
	require.NoError(t, os.RemoveAll(
		filepath.Join(root, bundle.VendorDir),
	))

	launch.Run(enabledEnv(), root)

	time.Sleep(100 * time.Millisecond)

	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_missing_entry_blocks_launch(t *testing.T) {
	t.Parallel()

	root, marker := installBundle(t)
	require.NoError(t, os.Remove(
		filepath.Join(root, "run.sh"),
	))

	launch.Run(enabledEnv(), root)

	time.Sleep(100 * time.Millisecond)

	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_empty_install_root(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		launch.Run(
			enabledEnv(),
			filepath.Join(t.TempDir(), "none"),
		)
	})
}

func TestRun_exports_project_id(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	envFile := filepath.Join(root, "env.out")

	script := "#!/bin/sh\n" +
		"env > \"" + envFile + ".tmp\"\n" +
		"mv \"" + envFile + ".tmp\" \"" +
		envFile + "\"\n"

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "run.sh"),
		[]byte(script), 0o755,
	))
	require.NoError(t, os.MkdirAll(
		filepath.Join(root, bundle.VendorDir),
		0o755,
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, bundle.ManifestFile),
		[]byte("entry: run.sh\ninterpreter: \"\"\n"),
		0o600,
	))
	require.NoError(t, bundle.WriteConfig(
		root,
		bundle.Config{ProjectID: "proj-7"},
	))

	launch.Run(enabledEnv(), root)

	require.True(
		t,
		waitForFile(t, envFile),
		"entry script never ran",
	)

	content, err := os.ReadFile(envFile) //nolint:gosec // test fixture
	require.NoError(t, err)

	assert.Contains(
		t,
		string(content),
		envcfg.ProjectIDVar+"=proj-7",
	)
	assert.Contains(
		t,
		string(content),
		envcfg.LaunchIDVar+"=",
	)
}
