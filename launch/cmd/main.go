// Command launch-sidecar runs the run-phase launch
// step: it re-checks enablement, verifies the staged
// bundle, and spawns the metering sidecar without
// waiting for it. It always exits 0; a failed launch
// must never fail the application start.
package main

import (
	"flag"

	"github.com/appstack-tools/metering-sidecar/envcfg"
	"github.com/appstack-tools/metering-sidecar/launch"
)

func main() {
	installRoot := flag.String(
		"install-root", launch.DefaultInstallRoot,
		"staged sidecar install directory",
	)

	flag.Parse()

	launch.Run(envcfg.System(), *installRoot)
}
