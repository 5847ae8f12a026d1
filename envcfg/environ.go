package envcfg

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/valyala/fasttemplate"
)

// dbURLFormat is the connection URL shape expected by
// the older metering integration path.
const dbURLFormat = "postgres://{user}:{password}@{host}/{name}"

// SidecarEnviron derives the child environment for a
// sidecar launch: the full snapshot, legacy metering
// variables re-exported from their newer platform
// names, an optional database connection URL built from
// pre-existing database configuration, the project ID
// read back from the staged configuration (empty means
// absent), and a fresh launch correlation ID.
func (e Env) SidecarEnviron(projectID string) []string {
	derived := make(map[string]string, len(e.vars)+5)
	for k, v := range e.vars {
		derived[k] = v
	}

	reexports := map[string]string{
		RuntimeLicenseServerURLVar:   LicenseServerURLVar,
		RuntimeSubscriptionSecretVar: SubscriptionSecretVar,
		RuntimeEnvironmentNameVar:    EnvironmentNameVar,
	}

	for src, dst := range reexports {
		if v, ok := e.Lookup(src); ok {
			derived[dst] = v
		}
	}

	if url, ok := e.dbConnectionURL(); ok {
		derived[DBConnectionURLVar] = url
	}

	if projectID != "" {
		derived[ProjectIDVar] = projectID
	}

	derived[LaunchIDVar] = uuid.NewString()

	kvs := make([]string, 0, len(derived))
	for k, v := range derived {
		kvs = append(kvs, k+"="+v)
	}

	sort.Strings(kvs)

	return kvs
}

// dbConnectionURL builds the backward-compatibility
// database URL from the application's own database
// variables. All four must be present.
func (e Env) dbConnectionURL() (string, bool) {
	parts := map[string]interface{}{
		"host":     e.Get("DATABASE_HOST"),
		"name":     e.Get("DATABASE_NAME"),
		"user":     e.Get("DATABASE_USERNAME"),
		"password": e.Get("DATABASE_PASSWORD"),
	}

	for key, val := range parts {
		if val == "" {
			slog.Debug(
				"skipping db connection url",
				"missing", key,
			)

			return "", false
		}
	}

	url := fasttemplate.ExecuteStringStd(
		dbURLFormat, "{", "}", parts,
	)

	return url, true
}
