package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSplit(t *testing.T) {
	script := `-- header; with a semicolon
CREATE TABLE a (x String DEFAULT 'a;b'); -- trailing
INSERT INTO a VALUES ('it''s; fine');

;`
	got := Split(script)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE a (x String DEFAULT 'a;b')", got[0])
	assert.Equal(t, "INSERT INTO a VALUES ('it''s; fine')", got[1])
}

func TestClickHouse_AppliesStatements(t *testing.T) {
	var stmts []string
	n, err := ClickHouse(context.Background(), func(_ context.Context, sql string) error {
		stmts = append(stmts, sql)
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS execution_events"))
	assert.NotContains(t, stmts[0], ";")
}

func TestPostgres_AppliesWholeFiles(t *testing.T) {
	var stmts []string
	n, err := Postgres(context.Background(), func(_ context.Context, sql string) error {
		stmts = append(stmts, sql)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "token_catalog")
	assert.Contains(t, stmts[0], "idx_token_catalog_symbol")
}

func TestApply_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	n, err := Postgres(context.Background(), func(context.Context, string) error { return boom }, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)
}
