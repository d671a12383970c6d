package kb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
    pragma journal_mode = off;
    pragma synchronous = off;

    create table if not exists kb_meta (
        key   text primary key not NULL,
        value text default NULL
    );

    create table if not exists kb_entities (
        id    integer primary key not NULL,
        types text not NULL
    );

    create table if not exists kb_fields (
        entity_id integer not NULL,
        name      text not NULL,
        value     text not NULL
    );

    create index if not exists kb_fields_entity on kb_fields(entity_id);
`

// OpenSQLite opens an existing SQLite knowledge base.
func OpenSQLite(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("kb database not found: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening kb database: %w", err)
	}
	return db, nil
}

// CreateSQLite creates a fresh SQLite knowledge base, replacing any file at path.
func CreateSQLite(path string) (*sql.DB, error) {
	os.Remove(path)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("creating kb database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kb schema: %w", err)
	}
	return db, nil
}

// WriteSQL stores entities in a database created with CreateSQLite. progress,
// if non-nil, is called once per entity.
func WriteSQL(ctx context.Context, db *sql.DB, version string, entities []*Entity, progress func()) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `insert or replace into kb_meta(key, value) values ('version', ?)`, version); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	entStmt, err := tx.PrepareContext(ctx, `insert into kb_entities(id, types) values (?, ?)`)
	if err != nil {
		return err
	}
	defer entStmt.Close()
	fieldStmt, err := tx.PrepareContext(ctx, `insert into kb_fields(entity_id, name, value) values (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fieldStmt.Close()

	for _, e := range entities {
		if _, err := entStmt.ExecContext(ctx, e.ID, e.Types.String()); err != nil {
			return fmt.Errorf("writing entity %d: %w", e.ID, err)
		}
		for _, k := range sortedKeys(e.Fields) {
			if _, err := fieldStmt.ExecContext(ctx, e.ID, k, e.Fields[k]); err != nil {
				return fmt.Errorf("writing entity %d field %s: %w", e.ID, k, err)
			}
		}
		if progress != nil {
			progress()
		}
	}
	return tx.Commit()
}

// LoadSQL reads a knowledge base written by WriteSQL.
func LoadSQL(ctx context.Context, db *sql.DB, opts ...Option) (*Memory, error) {
	var version string
	err := db.QueryRowContext(ctx, `select value from kb_meta where key = 'version'`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("reading kb version: %w", err)
	}

	entRows, err := db.QueryContext(ctx, `select id, types from kb_entities order by id`)
	if err != nil {
		return nil, fmt.Errorf("reading kb entities: %w", err)
	}
	b := newEntityBuilder()
	err = b.scanEntities(entRows)
	entRows.Close()
	if err != nil {
		return nil, err
	}

	fieldRows, err := db.QueryContext(ctx, `select entity_id, name, value from kb_fields`)
	if err != nil {
		return nil, fmt.Errorf("reading kb fields: %w", err)
	}
	defer fieldRows.Close()
	if err := b.scanFields(fieldRows); err != nil {
		return nil, err
	}
	return NewMemory(version, b.entities(), opts...), nil
}

// rows is the subset of *sql.Rows and pgx.Rows used by the loaders.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type entityBuilder struct {
	byID  map[int]*Entity
	order []int
}

func newEntityBuilder() *entityBuilder {
	return &entityBuilder{byID: make(map[int]*Entity)}
}

func (b *entityBuilder) scanEntities(r rows) error {
	for r.Next() {
		var (
			id    int
			types string
		)
		if err := r.Scan(&id, &types); err != nil {
			return fmt.Errorf("scanning kb entity: %w", err)
		}
		b.addEntity(id, types)
	}
	return r.Err()
}

func (b *entityBuilder) scanFields(r rows) error {
	for r.Next() {
		var (
			id          int
			name, value string
		)
		if err := r.Scan(&id, &name, &value); err != nil {
			return fmt.Errorf("scanning kb field: %w", err)
		}
		b.addField(id, name, value)
	}
	return r.Err()
}

func (b *entityBuilder) addEntity(id int, types string) {
	if _, ok := b.byID[id]; !ok {
		b.order = append(b.order, id)
	}
	b.byID[id] = &Entity{ID: id, Types: ParseTypeSet(types), Fields: make(map[string]string)}
}

// addField ignores fields of unknown entities.
func (b *entityBuilder) addField(id int, name, value string) {
	if e, ok := b.byID[id]; ok && value != "" {
		e.Fields[name] = value
	}
}

func (b *entityBuilder) entities() []*Entity {
	out := make([]*Entity, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}
