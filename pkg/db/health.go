package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrKBEmpty reports a reachable database that holds no knowledge base yet,
// either because the schema is missing or because an import has not finished.
var ErrKBEmpty = errors.New("knowledge base tables missing or empty")

// KBReadiness describes a database that holds a loadable knowledge base.
type KBReadiness struct {
	Latency  time.Duration
	Version  string
	Entities int64
}

// CheckKB pings the pool and verifies the knowledge base tables are present
// and populated. A missing or empty knowledge base is ErrKBEmpty; callers
// polling for readiness should retry on it.
func CheckKB(ctx context.Context, pool *pgxpool.Pool) (*KBReadiness, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	start := time.Now()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	r := &KBReadiness{Latency: time.Since(start)}

	var present bool
	err := pool.QueryRow(ctx,
		`SELECT to_regclass('kb_meta') IS NOT NULL AND to_regclass('kb_entities') IS NOT NULL`,
	).Scan(&present)
	if err != nil {
		return nil, fmt.Errorf("checking kb tables: %w", err)
	}
	if !present {
		return nil, fmt.Errorf("%w: schema not applied", ErrKBEmpty)
	}

	if err := pool.QueryRow(ctx, `SELECT count(*) FROM kb_entities`).Scan(&r.Entities); err != nil {
		return nil, fmt.Errorf("counting kb entities: %w", err)
	}
	if r.Entities == 0 {
		return nil, fmt.Errorf("%w: no entities", ErrKBEmpty)
	}

	err = pool.QueryRow(ctx, `SELECT value FROM kb_meta WHERE key = 'version'`).Scan(&r.Version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading kb version: %w", err)
	}
	return r, nil
}
