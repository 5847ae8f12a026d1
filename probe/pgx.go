package probe

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/appstack-tools/metering-sidecar/binding"
)

// pgxConn adapts *pgx.Conn to the Conn interface.
type pgxConn struct {
	conn *pgx.Conn
}

// pgxConnector opens a single pgx connection. No pool:
// the poll loop opens and closes one connection per
// iteration.
func pgxConnector(
	ctx context.Context,
	params binding.ConnectionParameters,
) (Conn, error) {
	const errCtx = "opening pgx connection"

	dsn := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			params.User, params.Password,
		),
		Host: params.Address + ":" +
			strconv.Itoa(params.Port),
	}

	conn, err := pgx.Connect(ctx, dsn.String())
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return &pgxConn{conn: conn}, nil
}

// Query runs the statement and flattens every row into
// a value slice.
func (c *pgxConn) Query(
	ctx context.Context,
	sql string,
) ([][]interface{}, error) {
	const errCtx = "querying"

	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	defer rows.Close()

	var out [][]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf(
				"%s: reading row: %w",
				errCtx, err,
			)
		}

		out = append(out, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return out, nil
}

// Close releases the connection.
func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}
