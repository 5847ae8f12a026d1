// Package envcfg models the platform environment as an
// explicit configuration object. Components receive an
// Env value instead of reading the process environment,
// so tests can supply synthetic configurations.
package envcfg

import (
	"os"
	"sort"
	"strings"
)

// Recognized environment variable names.
const (
	// LicenseServerURLVar enables metering when present.
	LicenseServerURLVar = "METERING_LICENSE_SERVER_URL"

	// SubscriptionSecretVar is the legacy subscription
	// secret name expected by the sidecar.
	SubscriptionSecretVar = "METERING_SUBSCRIPTION_SECRET"

	// EnvironmentNameVar is the legacy environment name
	// expected by the sidecar.
	EnvironmentNameVar = "METERING_ENVIRONMENT_NAME"

	// RuntimeLicenseServerURLVar is the newer platform
	// name re-exported to LicenseServerURLVar.
	RuntimeLicenseServerURLVar = "RUNTIME_LICENSE_SERVER_URL"

	// RuntimeSubscriptionSecretVar is the newer platform
	// name re-exported to SubscriptionSecretVar.
	RuntimeSubscriptionSecretVar = "RUNTIME_LICENSE_SUBSCRIPTION_SECRET"

	// RuntimeEnvironmentNameVar is the newer platform
	// name re-exported to EnvironmentNameVar.
	RuntimeEnvironmentNameVar = "RUNTIME_LICENSE_ENVIRONMENT_NAME"

	// ServiceCatalogVar holds the raw service-binding
	// catalog document.
	ServiceCatalogVar = "VCAP_SERVICES"

	// OverrideVar force-enables the sidecar regardless
	// of other signals.
	OverrideVar = "METERING_SIDECAR_ENABLED"

	// DBConnectionURLVar is the derived database URL
	// exported for the older integration path.
	DBConnectionURLVar = "METERING_DB_CONNECTION_URL"

	// ProjectIDVar carries the project identifier read
	// back from the staged sidecar configuration.
	ProjectIDVar = "METERING_PROJECT_ID"

	// LaunchIDVar carries a per-launch correlation ID.
	LaunchIDVar = "METERING_LAUNCH_ID"
)

// Env is an immutable snapshot of environment variables.
type Env struct {
	vars map[string]string
}

// System snapshots the current process environment.
func System() Env {
	vars := make(map[string]string)

	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			vars[parts[0]] = parts[1]
		}
	}

	return Env{vars: vars}
}

// Map builds an Env from the given variables. Intended
// for tests and synthetic configurations.
func Map(vars map[string]string) Env {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}

	return Env{vars: copied}
}

// Lookup returns the value of the named variable and
// whether it is set.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]

	return v, ok
}

// Get returns the value of the named variable, or the
// empty string when unset.
func (e Env) Get(key string) string {
	return e.vars[key]
}

// Environ returns the snapshot as sorted KEY=VALUE
// pairs suitable for exec.Cmd.Env.
func (e Env) Environ() []string {
	kvs := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		kvs = append(kvs, k+"="+v)
	}

	sort.Strings(kvs)

	return kvs
}
