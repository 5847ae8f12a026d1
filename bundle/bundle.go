// Package bundle describes the sidecar bundle layout
// shared by the build-phase stager and the run-phase
// launcher: fixed file names, the optional bundle
// manifest, and the derived configuration record.
package bundle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Fixed names in the bundle layout.
const (
	// Namespace is the directory name the bundle is
	// staged under inside the application root.
	Namespace = "metering"

	// SourceDir is the bundle directory name inside
	// the bundle source root.
	SourceDir = "sidecar-bundle"

	// VendorDir holds the sidecar's vendored
	// dependencies.
	VendorDir = "vendor"

	// ConfigFile is the derived configuration written
	// at stage time and read back at run time.
	ConfigFile = "conf.json"

	// ManifestFile optionally describes the bundle
	// entry point.
	ManifestFile = "sidecar.yaml"

	// MetadataFile is the build metadata path, relative
	// to the application build root, holding the
	// project ID.
	MetadataFile = "model/metadata.json"
)

// Entry point defaults used when the bundle carries no
// manifest.
const (
	DefaultEntry       = "sidecar.py"
	DefaultInterpreter = "python3"
)

// Manifest describes how to invoke the bundle's entry
// point. An empty interpreter means the entry is
// executed directly.
type Manifest struct {
	Entry       string `yaml:"entry"`
	Interpreter string `yaml:"interpreter"`
}

// Config is the derived configuration record written
// into the staged bundle.
type Config struct {
	ProjectID string `json:"ProjectID"`
}

// ReadManifest loads the manifest from the given bundle
// directory. A missing manifest yields the defaults.
func ReadManifest(dir string) (Manifest, error) {
	const errCtx = "reading bundle manifest"

	manifest := Manifest{
		Entry:       DefaultEntry,
		Interpreter: DefaultInterpreter,
	}

	pa := filepath.Join(dir, ManifestFile)

	raw, err := os.ReadFile(pa) //nolint:gosec // bundle-relative path
	if errors.Is(err, os.ErrNotExist) {
		return manifest, nil
	}

	if err != nil {
		return manifest, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return manifest, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if manifest.Entry == "" {
		manifest.Entry = DefaultEntry
	}

	return manifest, nil
}

// WriteConfig persists the derived configuration into
// the given install directory.
func WriteConfig(dir string, cfg Config) error {
	const errCtx = "writing sidecar configuration"

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	pa := filepath.Join(dir, ConfigFile)

	if err := os.WriteFile(pa, raw, 0o644); err != nil { //nolint:gosec // world-readable config
		return fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return nil
}

// ReadConfig loads the derived configuration from the
// given install directory.
func ReadConfig(dir string) (Config, error) {
	const errCtx = "reading sidecar configuration"

	var cfg Config

	pa := filepath.Join(dir, ConfigFile)

	raw, err := os.ReadFile(pa) //nolint:gosec // install-relative path
	if err != nil {
		return cfg, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return cfg, nil
}

// ProjectID reads the project identifier from the build
// metadata file at path.
func ProjectID(path string) (string, error) {
	const errCtx = "reading project id"

	raw, err := os.ReadFile(path) //nolint:gosec // build-relative path
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var metadata struct {
		ProjectID string `json:"ProjectID"`
	}

	if err := json.Unmarshal(raw, &metadata); err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if metadata.ProjectID == "" {
		return "", fmt.Errorf(
			"%s: empty ProjectID field", errCtx,
		)
	}

	return metadata.ProjectID, nil
}

// Installed reports whether a previously staged bundle
// at installRoot is structurally complete: the entry
// script and the vendor directory must both exist.
// Content beyond existence is not inspected.
func Installed(installRoot string, entry string) bool {
	script := filepath.Join(installRoot, entry)
	vendor := filepath.Join(installRoot, VendorDir)

	scriptOK := exists(script)
	vendorOK := exists(vendor)

	slog.Info(
		"checking sidecar installation",
		"script", script,
		"script_exists", scriptOK,
		"vendor", vendor,
		"vendor_exists", vendorOK,
	)

	if scriptOK && !vendorOK {
		slog.Error(
			"sidecar found but vendor" +
				" dependencies missing",
		)
	}

	return scriptOK && vendorOK
}

// exists reports whether the path exists.
func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
