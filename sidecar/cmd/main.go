// Command metering-sidecar is the sidecar process
// itself. It periodically resolves database credentials
// from the service-binding catalog, probes the bound
// database, and logs the result, surviving transient
// failures until the process is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appstack-tools/metering-sidecar/binding"
	"github.com/appstack-tools/metering-sidecar/envcfg"
	"github.com/appstack-tools/metering-sidecar/poll"
	"github.com/appstack-tools/metering-sidecar/probe"
)

// errMissingCatalog is reported when the platform has
// not exposed a service-binding catalog.
var errMissingCatalog = errors.New(
	"service-binding catalog variable not set",
)

func main() {
	serviceKind := flag.String(
		"service-kind", binding.DefaultServiceKind,
		"service-binding catalog key to resolve",
	)

	interval := flag.Duration(
		"interval", poll.DefaultInterval,
		"sleep between successful iterations",
	)

	backoff := flag.Duration(
		"backoff", poll.DefaultBackoff,
		"sleep after a failed iteration",
	)

	flag.Parse()

	env := envcfg.System()

	logStartup(env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	pr := probe.New()

	loop := &poll.Loop{
		Resolve: func() (
			binding.ConnectionParameters, error,
		) {
			return resolve(env, *serviceKind)
		},
		Fetch:    pr.Fetch,
		Interval: *interval,
		Backoff:  *backoff,
	}

	slog.Info("metering sidecar starting")

	loop.Run(ctx)

	slog.Info("metering sidecar stopped")
}

// resolve parses the catalog and extracts connection
// parameters for one poll iteration.
func resolve(
	env envcfg.Env,
	kind string,
) (binding.ConnectionParameters, error) {
	var none binding.ConnectionParameters

	raw, ok := env.Lookup(envcfg.ServiceCatalogVar)
	if !ok {
		return none, errMissingCatalog
	}

	catalog, err := binding.ParseCatalog(raw)
	if err != nil {
		return none, err
	}

	return binding.Resolve(catalog, kind)
}

// logStartup records the environment facts that matter
// when diagnosing a sidecar that cannot reach its
// database.
func logStartup(env envcfg.Env) {
	wd, _ := os.Getwd()

	slog.Info(
		"environment",
		"working_dir", wd,
		"pid", os.Getpid(),
		"started", time.Now().Format(time.RFC3339),
	)

	if _, ok := env.Lookup(
		envcfg.ServiceCatalogVar,
	); ok {
		slog.Info("service-binding catalog found")
	} else {
		slog.Error(
			"service-binding catalog not set",
			"var", envcfg.ServiceCatalogVar,
		)
	}

	if id, ok := env.Lookup(
		envcfg.ProjectIDVar,
	); ok {
		slog.Info("project", "id", id)
	}

	if id, ok := env.Lookup(
		envcfg.LaunchIDVar,
	); ok {
		slog.Info("launch", "id", id)
	}
}
