package kb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/penf-ner/pkg/db"
)

// LoadPostgres reads the kb_meta, kb_entities and kb_fields tables (same
// layout as the SQLite schema) into a Memory store.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Memory, error) {
	var version string
	err := pool.QueryRow(ctx, `SELECT value FROM kb_meta WHERE key = 'version'`).Scan(&version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading kb version: %w", err)
	}

	b := newEntityBuilder()

	entRows, err := pool.Query(ctx, `SELECT id, types FROM kb_entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading kb entities: %w", err)
	}
	err = b.scanEntities(entRows)
	entRows.Close()
	if err != nil {
		return nil, err
	}

	fieldRows, err := pool.Query(ctx, `SELECT entity_id, name, value FROM kb_fields`)
	if err != nil {
		return nil, fmt.Errorf("reading kb fields: %w", err)
	}
	defer fieldRows.Close()
	if err := b.scanFields(fieldRows); err != nil {
		return nil, err
	}

	return NewMemory(version, b.entities(), opts...), nil
}

// WritePostgres replaces the knowledge base tables with entities. The schema
// must exist (see db.EnsureSchema).
func WritePostgres(ctx context.Context, pool *pgxpool.Pool, version string, entities []*Entity) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	entRows := make([][]any, 0, len(entities))
	var fieldRows [][]any
	for _, e := range entities {
		entRows = append(entRows, []any{int32(e.ID), e.Types.String()})
		for _, k := range sortedKeys(e.Fields) {
			fieldRows = append(fieldRows, []any{int32(e.ID), k, e.Fields[k]})
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM kb_fields`); err != nil {
		return fmt.Errorf("failed to clear kb_fields: %w", err)
	}
	if _, err := db.ReplaceRows(ctx, tx, "kb_entities", []string{"id", "types"}, entRows); err != nil {
		return err
	}
	if _, err := db.ReplaceRows(ctx, tx, "kb_fields", []string{"entity_id", "name", "value"}, fieldRows); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO kb_meta (key, value) VALUES ('version', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, version)
	if err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	return tx.Commit(ctx)
}
