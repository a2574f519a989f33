// Package migrations applies the embedded schema files. Every file must be
// idempotent: they run in lexical order on each start.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ExecFunc runs SQL against a database.
type ExecFunc func(ctx context.Context, sql string) error

// Postgres applies the PostgreSQL files, one Exec per file.
func Postgres(ctx context.Context, exec ExecFunc, logger *zap.Logger) (int, error) {
	return apply(ctx, "postgres", false, exec, logger)
}

// ClickHouse applies the ClickHouse files one statement at a time, since
// the native protocol rejects multi-statement queries.
func ClickHouse(ctx context.Context, exec ExecFunc, logger *zap.Logger) (int, error) {
	return apply(ctx, "clickhouse", true, exec, logger)
}

func apply(ctx context.Context, dir string, split bool, exec ExecFunc, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("migrations").With(zap.String("database", dir))

	files, err := list(dir)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, file := range files {
		data, err := fs.ReadFile(schema, path.Join(dir, file))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}
		stmts := []string{string(data)}
		if split {
			stmts = Split(string(data))
		}
		for _, stmt := range stmts {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if err := exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		applied++
		logger.Debug("migration applied", zap.String("file", file))
	}
	logger.Info("schema up to date", zap.Int("files", applied))
	return applied, nil
}

func list(dir string) ([]string, error) {
	entries, err := fs.ReadDir(schema, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Split breaks a script into statements at semicolons outside single-quoted
// strings. Line comments outside strings are dropped.
func Split(script string) []string {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case inString:
			cur.WriteByte(c)
			if c == '\'' {
				// '' is an escaped quote
				if i+1 < len(script) && script[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inString = false
				}
			}
		case c == '\'':
			inString = true
			cur.WriteByte(c)
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return stmts
}
