package probe_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-tools/metering-sidecar/binding"
	"github.com/appstack-tools/metering-sidecar/probe"
)

// fakeConn scripts per-statement results and records
// whether it was released.
type fakeConn struct {
	rows    map[string][][]interface{}
	errs    map[string]error
	queries []string
	closed  bool
}

func (c *fakeConn) Query(
	_ context.Context,
	sql string,
) ([][]interface{}, error) {
	c.queries = append(c.queries, sql)

	if err, ok := c.errs[sql]; ok {
		return nil, err
	}

	if rows, ok := c.rows[sql]; ok {
		return rows, nil
	}

	return nil, errors.New("no such relation")
}

func (c *fakeConn) Close(context.Context) error {
	c.closed = true

	return nil
}

// connector returns conn for every connection attempt.
func connector(conn *fakeConn) probe.Connector {
	return func(
		context.Context,
		binding.ConnectionParameters,
	) (probe.Conn, error) {
		return conn, nil
	}
}

// targetQueries filters recorded statements down to
// target table attempts.
func targetQueries(conn *fakeConn) []string {
	var targets []string

	for _, q := range conn.queries {
		if strings.HasPrefix(q, "select * from ") {
			targets = append(targets, q)
		}
	}

	return targets
}

func TestFetch_connection_failure(t *testing.T) {
	t.Parallel()

	pr := probe.NewWithConnector(func(
		context.Context,
		binding.ConnectionParameters,
	) (probe.Conn, error) {
		return nil, errors.New("refused")
	})

	rows, outcome := pr.Fetch(
		context.Background(),
		binding.ConnectionParameters{},
	)

	assert.Empty(t, rows)
	assert.Equal(
		t, probe.OutcomeConnectionFailed, outcome,
	)
}

func TestFetch_second_variant_wins(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{
		rows: map[string][][]interface{}{
			"select * from SYSTEM$USER": {
				{"alice"}, {"bob"},
			},
		},
	}

	pr := probe.NewWithConnector(connector(conn))

	rows, outcome := pr.Fetch(
		context.Background(),
		binding.ConnectionParameters{},
	)

	require.Equal(t, probe.OutcomeOK, outcome)
	assert.Len(t, rows, 2)
	assert.Equal(
		t, [][]interface{}{{"alice"}, {"bob"}}, rows,
	)

	// The first variant failed, the second matched,
	// and no later variant was attempted.
	require.Equal(
		t,
		[]string{
			`select * from "system$user"`,
			"select * from SYSTEM$USER",
		},
		targetQueries(conn),
	)

	assert.True(t, conn.closed)
}

func TestFetch_no_variant_matches(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}

	pr := probe.NewWithConnector(connector(conn))

	rows, outcome := pr.Fetch(
		context.Background(),
		binding.ConnectionParameters{},
	)

	assert.Empty(t, rows)
	assert.Equal(
		t, probe.OutcomeTargetNotFound, outcome,
	)
	assert.Len(t, targetQueries(conn), 4)
	assert.True(t, conn.closed)
}

func TestFetch_releases_connection_on_failure(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{
		errs: map[string]error{
			`select * from "system$user"`: errors.New(
				"boom",
			),
		},
	}

	pr := probe.NewWithConnector(connector(conn))

	pr.Fetch(
		context.Background(),
		binding.ConnectionParameters{},
	)

	assert.True(t, conn.closed)
}

func TestFetch_namespace_failure_is_non_fatal(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{
		rows: map[string][][]interface{}{
			`select * from "system$user"`: {{"x"}},
		},
		errs: map[string]error{
			"select table_name" +
				" from information_schema.tables" +
				" where table_schema =" +
				" current_schema()": errors.New(
				"permission denied",
			),
		},
	}

	pr := probe.NewWithConnector(connector(conn))

	rows, outcome := pr.Fetch(
		context.Background(),
		binding.ConnectionParameters{},
	)

	require.Equal(t, probe.OutcomeOK, outcome)
	assert.Len(t, rows, 1)
}
