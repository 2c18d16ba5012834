package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AppliedMigration is a row from schema_migrations.
type AppliedMigration struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

var migrationFileName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return LoadMigrations(sub)
}

// LoadMigrations reads NNNN_name.up.sql / NNNN_name.down.sql pairs from fsys.
// Files not matching the pattern are ignored. Every version needs both halves.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	byVersion := make(map[int]*Migration)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationFileName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])

		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		} else if mig.Name != m[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, mig.Name, m[2])
		}

		if m[3] == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}

	var incomplete []int
	out := make([]Migration, 0, len(byVersion))
	for v, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			incomplete = append(incomplete, v)
			continue
		}
		out = append(out, *mig)
	}
	if len(incomplete) > 0 {
		sort.Ints(incomplete)
		return nil, fmt.Errorf("incomplete migrations (missing up or down file): %v", incomplete)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Pending returns migrations whose version is not in applied.
func Pending(all []Migration, applied map[int]bool) []Migration {
	var pending []Migration
	for _, m := range all {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrate applies every pending embedded migration, each in its own
// transaction, and returns how many ran.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	all, err := Migrations()
	if err != nil {
		return 0, err
	}

	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range Pending(all, applied) {
		start := time.Now()
		if err := runMigration(ctx, pool, m.Up, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		}); err != nil {
			return count, fmt.Errorf("migration %04d_%s: %w", m.Version, m.Name, err)
		}
		slog.Info("migration applied",
			"version", m.Version,
			"name", m.Name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		count++
	}
	return count, nil
}

// Rollback reverts the most recent steps migrations.
func Rollback(ctx context.Context, pool *pgxpool.Pool, steps int) (int, error) {
	all, err := Migrations()
	if err != nil {
		return 0, err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(all) - 1; i >= 0 && count < steps; i-- {
		m := all[i]
		if !applied[m.Version] {
			continue
		}
		if err := runMigration(ctx, pool, m.Down, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
			return err
		}); err != nil {
			return count, fmt.Errorf("rollback %04d_%s: %w", m.Version, m.Name, err)
		}
		slog.Info("migration rolled back", "version", m.Version, "name", m.Name)
		count++
	}
	return count, nil
}

// Status lists applied migrations in version order.
func Status(ctx context.Context, pool *pgxpool.Pool) ([]AppliedMigration, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := pool.Query(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AppliedMigration])
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[int]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scan schema_migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, sql string, record func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return err
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
