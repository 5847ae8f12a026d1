// Package probe opens a database connection, discovers
// the accessible table namespace, and queries the target
// table across its historical name spellings. Failures
// never escape the probe: every outcome is reported
// through an explicit Outcome value.
package probe

import (
	"context"
	"log/slog"

	"github.com/appstack-tools/metering-sidecar/binding"
)

// Outcome classifies the result of one probe run.
type Outcome int

const (
	// OutcomeOK means rows were fetched from one of the
	// target table variants.
	OutcomeOK Outcome = iota

	// OutcomeConnectionFailed means no connection could
	// be opened.
	OutcomeConnectionFailed

	// OutcomeTargetNotFound means the connection worked
	// but no table name variant could be queried.
	OutcomeTargetNotFound
)

// String returns a loggable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeConnectionFailed:
		return "connection failed"
	case OutcomeTargetNotFound:
		return "target not found"
	default:
		return "unknown"
	}
}

// tableVariants are the historical spellings of the
// target table, tried in order. First success wins.
var tableVariants = []string{
	`"system$user"`,
	`SYSTEM$USER`,
	`"SYSTEM$USER"`,
	`system$user`,
}

// namespaceQuery lists table names visible in the
// current schema. Diagnostics only.
const namespaceQuery = "select table_name" +
	" from information_schema.tables" +
	" where table_schema = current_schema()"

// identityQuery is the last-resort diagnostic run when
// no table variant matches.
const identityQuery = "select current_user"

// Conn is the subset of a database connection the probe
// needs. Query returns one value slice per row.
type Conn interface {
	Query(
		ctx context.Context,
		sql string,
	) ([][]interface{}, error)
	Close(ctx context.Context) error
}

// Connector opens a connection for the given parameters.
type Connector func(
	ctx context.Context,
	params binding.ConnectionParameters,
) (Conn, error)

// Probe fetches rows from the bound database.
type Probe struct {
	connect Connector
}

// New returns a probe using the default pgx connector.
func New() *Probe {
	return &Probe{connect: pgxConnector}
}

// NewWithConnector returns a probe using a custom
// connector. Intended for tests.
func NewWithConnector(connect Connector) *Probe {
	return &Probe{connect: connect}
}

// Fetch opens a connection, logs the visible namespace,
// and queries the target table variants in order. The
// connection is released on every exit path. Fetch
// never returns an error: failures surface as an empty
// row set and a non-OK outcome.
func (p *Probe) Fetch(
	ctx context.Context,
	params binding.ConnectionParameters,
) ([][]interface{}, Outcome) {
	conn, err := p.connect(ctx, params)
	if err != nil {
		slog.Error(
			"connecting to database",
			"address", params.Address,
			"port", params.Port,
			"user", params.User,
			"error", err,
		)

		return nil, OutcomeConnectionFailed
	}

	defer func() {
		if err := conn.Close(ctx); err != nil {
			slog.Error(
				"closing connection",
				"error", err,
			)
		}
	}()

	p.logNamespace(ctx, conn)

	rows, found := p.queryVariants(ctx, conn)
	if !found {
		p.logIdentity(ctx, conn)

		return nil, OutcomeTargetNotFound
	}

	return rows, OutcomeOK
}

// queryVariants tries each table name spelling in order
// and stops at the first that succeeds.
func (p *Probe) queryVariants(
	ctx context.Context,
	conn Conn,
) ([][]interface{}, bool) {
	for _, variant := range tableVariants {
		rows, err := conn.Query(
			ctx, "select * from "+variant,
		)
		if err != nil {
			slog.Warn(
				"table variant not queryable",
				"table", variant,
				"error", err,
			)

			continue
		}

		slog.Info(
			"queried target table",
			"table", variant,
			"rows", len(rows),
		)

		return rows, true
	}

	return nil, false
}

// logNamespace lists accessible tables. Failure here is
// non-fatal and does not abort the probe.
func (p *Probe) logNamespace(
	ctx context.Context,
	conn Conn,
) {
	rows, err := conn.Query(ctx, namespaceQuery)
	if err != nil {
		slog.Warn(
			"listing accessible tables",
			"error", err,
		)

		return
	}

	names := make([]interface{}, 0, len(rows))

	for _, row := range rows {
		if len(row) > 0 {
			names = append(names, row[0])
		}
	}

	slog.Info("accessible tables", "tables", names)
}

// logIdentity reports the connected user when no target
// table variant matched. Non-fatal diagnostics.
func (p *Probe) logIdentity(
	ctx context.Context,
	conn Conn,
) {
	rows, err := conn.Query(ctx, identityQuery)
	if err != nil {
		slog.Warn(
			"querying current user",
			"error", err,
		)

		return
	}

	slog.Info("current user", "rows", rows)
}
