package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolStat struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports the statistics of the pool backing a loaded
// knowledge base. Values are read from the pool on each scrape.
type PoolStatsCollector struct {
	pool  *pgxpool.Pool
	stats []poolStat
}

// NewPoolStatsCollector creates a collector labelled with the version of the
// knowledge base the pool serves.
func NewPoolStatsCollector(pool *pgxpool.Pool, namespace, kbVersion string) *PoolStatsCollector {
	labels := prometheus.Labels{"kb_version": kbVersion}
	stat := func(name, help string, t prometheus.ValueType, v func(*pgxpool.Stat) float64) poolStat {
		return poolStat{
			desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "kb_db_pool", name), help, nil, labels),
			valueType: t,
			value:     v,
		}
	}

	return &PoolStatsCollector{
		pool: pool,
		stats: []poolStat{
			stat("total_conns", "Connections currently open in the knowledge base pool",
				prometheus.GaugeValue, func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			stat("idle_conns", "Idle connections in the knowledge base pool",
				prometheus.GaugeValue, func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			stat("acquired_conns", "Connections currently acquired from the knowledge base pool",
				prometheus.GaugeValue, func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			stat("max_conns", "Maximum connections allowed in the knowledge base pool",
				prometheus.GaugeValue, func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			stat("acquires_total", "Successful connection acquires from the knowledge base pool",
				prometheus.CounterValue, func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

// Collect implements prometheus.Collector. A nil pool reports nothing.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	st := c.pool.Stat()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, s.valueType, s.value(st))
	}
}

// RegisterPoolStatsCollector registers a collector with reg. Registering an
// identical collector twice is not an error.
func RegisterPoolStatsCollector(reg prometheus.Registerer, pool *pgxpool.Pool, namespace, kbVersion string) (*PoolStatsCollector, error) {
	collector := NewPoolStatsCollector(pool, namespace, kbVersion)
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	}
	return collector, nil
}
