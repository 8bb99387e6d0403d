package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplyMigrations creates a fresh schema, runs every .sql file under
// migrations/ into it, and returns a pool pinned to that schema. Each test
// run gets its own schema so stress runs and integration tests can share a
// database without stepping on each other.
func ApplyMigrations(t *testing.T, pool *pgxpool.Pool) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	schema := fmt.Sprintf("rentflow_%d", os.Getpid())
	if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg := pool.Config().Copy()
	// public stays on the path so builtin helpers keep resolving.
	cfg.ConnConfig.RuntimeParams["search_path"] = schema + ",public"
	scoped, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open schema-scoped pool: %v", err)
	}
	t.Cleanup(scoped.Close)

	for _, file := range migrationFiles(t) {
		sql, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read migration %s: %v", file, err)
		}
		if _, err := scoped.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("apply migration %s: %v", filepath.Base(file), err)
		}
	}
	return scoped
}

func migrationFiles(t *testing.T) []string {
	t.Helper()

	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate migrations directory")
	}
	dir := filepath.Join(filepath.Dir(self), "..", "..", "migrations")
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migrations found under %s", dir)
	}
	sort.Strings(matches)
	return matches
}
