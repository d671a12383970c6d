package kb

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/otherjamesbrown/penf-ner/pkg/db"
	"github.com/otherjamesbrown/penf-ner/pkg/observability"
)

// Backend names accepted by NewOpener.
const (
	BackendTSV      = "tsv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// OpenerConfig selects and parameterises a backend.
type OpenerConfig struct {
	Backend  string
	Path     string
	Postgres *db.Config
	// Registerer receives the pool stats collector of a postgres backend.
	Registerer prometheus.Registerer
	Metrics    *observability.Metrics
	Options    []Option
}

// NewOpener returns the OpenFunc for cfg.Backend.
func NewOpener(cfg OpenerConfig) (OpenFunc, error) {
	var open OpenFunc
	switch cfg.Backend {
	case BackendTSV, "":
		open = func(ctx context.Context) (KnowledgeBase, func() error, error) {
			m, err := LoadTSVFile(cfg.Path, cfg.Options...)
			if err != nil {
				return nil, nil, err
			}
			return m, nil, nil
		}
	case BackendSQLite:
		open = func(ctx context.Context) (KnowledgeBase, func() error, error) {
			sqlDB, err := OpenSQLite(cfg.Path)
			if err != nil {
				return nil, nil, err
			}
			defer sqlDB.Close()
			m, err := LoadSQL(ctx, sqlDB, cfg.Options...)
			if err != nil {
				return nil, nil, err
			}
			return m, nil, nil
		}
	case BackendPostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres backend needs connection settings")
		}
		open = func(ctx context.Context) (KnowledgeBase, func() error, error) {
			pool, err := db.Connect(ctx, cfg.Postgres)
			if err != nil {
				return nil, nil, err
			}
			// An import in progress leaves the tables missing or empty.
			if _, err := db.CheckKB(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
			m, err := LoadPostgres(ctx, pool, cfg.Options...)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			var collector prometheus.Collector
			if cfg.Registerer != nil {
				c, err := db.RegisterPoolStatsCollector(cfg.Registerer, pool, observability.Namespace, m.Version())
				if err == nil {
					collector = c
				}
			}
			release := func() error {
				if collector != nil {
					cfg.Registerer.Unregister(collector)
				}
				pool.Close()
				return nil
			}
			return m, release, nil
		}
	default:
		return nil, fmt.Errorf("unknown kb backend %q", cfg.Backend)
	}

	if cfg.Metrics == nil {
		return open, nil
	}
	return func(ctx context.Context) (KnowledgeBase, func() error, error) {
		start := time.Now()
		kb, release, err := open(ctx)
		if err != nil {
			return nil, nil, err
		}
		n := 0
		if m, ok := kb.(*Memory); ok {
			n = m.Len()
		}
		cfg.Metrics.RecordKBLoad(cfg.Backend, time.Since(start).Seconds(), n)
		return Instrument(kb, cfg.Metrics), release, nil
	}, nil
}
