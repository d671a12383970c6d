package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaStep is one versioned DDL change of the knowledge base tables.
type SchemaStep struct {
	Version string
	SQL     string
}

// KBSchema creates the tables the knowledge base loader reads.
var KBSchema = []SchemaStep{
	{
		Version: "001_kb_tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS kb_meta (
				key   TEXT PRIMARY KEY,
				value TEXT
			);
			CREATE TABLE IF NOT EXISTS kb_entities (
				id    INTEGER PRIMARY KEY,
				types TEXT NOT NULL
			);
			CREATE TABLE IF NOT EXISTS kb_fields (
				entity_id INTEGER NOT NULL REFERENCES kb_entities(id) ON DELETE CASCADE,
				name      TEXT NOT NULL,
				value     TEXT NOT NULL
			);
		`,
	},
	{
		Version: "002_kb_fields_index",
		SQL:     `CREATE INDEX IF NOT EXISTS kb_fields_entity ON kb_fields(entity_id);`,
	},
}

// PendingSteps returns the steps not in applied, in order.
func PendingSteps(steps []SchemaStep, applied map[string]bool) []SchemaStep {
	var pending []SchemaStep
	for _, s := range steps {
		if !applied[s.Version] {
			pending = append(pending, s)
		}
	}
	return pending
}

// EnsureSchema applies every pending step, each in its own transaction, and
// returns the versions applied.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, steps []SchemaStep) ([]string, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kb_schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedSteps(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var done []string
	for _, s := range PendingSteps(steps, applied) {
		if err := applyStep(ctx, pool, s); err != nil {
			return done, fmt.Errorf("migration %s failed: %w", s.Version, err)
		}
		done = append(done, s.Version)
	}
	return done, nil
}

func appliedSteps(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM kb_schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyStep(ctx context.Context, pool *pgxpool.Pool, s SchemaStep) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, s.SQL); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO kb_schema_migrations (version) VALUES ($1)", s.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit(ctx)
}

// ReplaceRows empties table and bulk-loads rows with COPY within tx.
func ReplaceRows(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", table, err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy into %s: %w", table, err)
	}
	return n, nil
}
