// Command stage-sidecar runs the build-phase staging
// step: it copies the metering sidecar bundle into the
// application's build output when metering is enabled.
// It always exits 0; a failed stage must never fail the
// surrounding build.
package main

import (
	"flag"

	"github.com/appstack-tools/metering-sidecar/envcfg"
	"github.com/appstack-tools/metering-sidecar/staging"
)

func main() {
	bundleSource := flag.String(
		"bundle-source", ".",
		"directory containing the sidecar-bundle",
	)

	buildPath := flag.String(
		"build-path", "",
		"application build output directory",
	)

	cacheDir := flag.String(
		"cache-dir", "",
		"build cache directory (unused)",
	)

	flag.Parse()

	staging.Stage(
		envcfg.System(),
		*bundleSource,
		*buildPath,
		*cacheDir,
	)
}
