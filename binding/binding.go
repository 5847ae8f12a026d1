// Package binding extracts database connection
// parameters from a platform service-binding catalog.
// The catalog schema varies between platform versions;
// resolution tolerates missing and renamed fields by
// failing with a typed error instead of panicking.
package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	json "github.com/goccy/go-json"
)

// DefaultServiceKind is the catalog key the sidecar
// looks up when none is configured.
const DefaultServiceKind = "hana"

// ErrServiceNotBound is returned when the catalog has
// no entry for the requested service kind.
var ErrServiceNotBound = errors.New(
	"service kind not bound",
)

// ErrNoBindingInstance is returned when the service
// kind is present but its instance list is empty.
var ErrNoBindingInstance = errors.New(
	"no binding instance",
)

// ErrIncompleteCredentials is returned when a required
// credential field is absent.
var ErrIncompleteCredentials = errors.New(
	"incomplete credentials",
)

// ErrMalformedCredentials is returned when a credential
// field is present but unusable (e.g. a non-numeric
// port).
var ErrMalformedCredentials = errors.New(
	"malformed credentials",
)

// Catalog maps service-kind names to their bound
// instances, mirroring the platform document.
type Catalog map[string][]Instance

// Instance is one bound service instance.
type Instance struct {
	Credentials map[string]interface{} `json:"credentials"`
}

// ConnectionParameters holds everything needed to open
// one database connection. Immutable once resolved.
type ConnectionParameters struct {
	Address  string
	Port     int
	User     string
	Password string
}

// ParseCatalog decodes a raw service-binding catalog
// document.
func ParseCatalog(raw string) (Catalog, error) {
	const errCtx = "parsing service-binding catalog"

	var catalog Catalog

	if err := json.Unmarshal(
		[]byte(raw), &catalog,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return catalog, nil
}

// Resolve extracts connection parameters for the named
// service kind. Only the first bound instance is
// consulted. Pure function: no side effects beyond
// diagnostic logging.
func Resolve(
	catalog Catalog,
	kind string,
) (ConnectionParameters, error) {
	const errCtx = "resolving service binding"

	var params ConnectionParameters

	instances, ok := catalog[kind]
	if !ok {
		return params, fmt.Errorf(
			"%s: %q: %w",
			errCtx, kind, ErrServiceNotBound,
		)
	}

	if len(instances) == 0 {
		return params, fmt.Errorf(
			"%s: %q: %w",
			errCtx, kind, ErrNoBindingInstance,
		)
	}

	creds := instances[0].Credentials

	host, err := stringField(creds, "host")
	if err != nil {
		return params, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	port, err := portField(creds)
	if err != nil {
		return params, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	user, err := stringField(creds, "user")
	if err != nil {
		return params, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	password, err := stringField(creds, "password")
	if err != nil {
		return params, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	logMetadata(creds)

	return ConnectionParameters{
		Address:  host,
		Port:     port,
		User:     user,
		Password: password,
	}, nil
}

// stringField reads a required string credential.
func stringField(
	creds map[string]interface{},
	name string,
) (string, error) {
	raw, ok := creds[name]
	if !ok {
		return "", fmt.Errorf(
			"field %q: %w",
			name, ErrIncompleteCredentials,
		)
	}

	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf(
			"field %q: %w",
			name, ErrMalformedCredentials,
		)
	}

	return s, nil
}

// portField reads the port, accepting either a JSON
// string or number.
func portField(
	creds map[string]interface{},
) (int, error) {
	raw, ok := creds["port"]
	if !ok {
		return 0, fmt.Errorf(
			"field \"port\": %w",
			ErrIncompleteCredentials,
		)
	}

	switch v := raw.(type) {
	case string:
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf(
				"field \"port\" %q: %w",
				v, ErrMalformedCredentials,
			)
		}

		return port, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf(
			"field \"port\" (%T): %w",
			raw, ErrMalformedCredentials,
		)
	}
}

// logMetadata surfaces optional credential metadata
// that is useful when diagnosing a misbound service.
func logMetadata(creds map[string]interface{}) {
	for _, name := range []string{
		"schema", "database_id", "driver",
	} {
		if v, ok := creds[name]; ok {
			slog.Debug(
				"binding metadata",
				"field", name,
				"value", v,
			)
		}
	}
}
