package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector reads pgx pool statistics at scrape time.
type PoolCollector struct {
	pool *pgxpool.Pool

	conns        *prometheus.Desc
	acquires     *prometheus.Desc
	emptyAcquire *prometheus.Desc
	acquireWait  *prometheus.Desc
}

// NewPoolCollector creates a collector for the pool. Register it with
// prometheus.Register and unregister it before closing the pool.
func NewPoolCollector(pool *pgxpool.Pool) *PoolCollector {
	name := func(n string) string { return prometheus.BuildFQName(Namespace, "db_pool", n) }
	return &PoolCollector{
		pool:         pool,
		conns:        prometheus.NewDesc(name("connections"), "Database connections by state", []string{"state"}, nil),
		acquires:     prometheus.NewDesc(name("acquires_total"), "Successful connection acquisitions", nil, nil),
		emptyAcquire: prometheus.NewDesc(name("empty_acquires_total"), "Acquisitions that had to wait for a free connection", nil, nil),
		acquireWait:  prometheus.NewDesc(name("acquire_wait_seconds_total"), "Total time spent acquiring connections", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.acquires
	ch <- c.emptyAcquire
	ch <- c.acquireWait
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()

	for state, n := range map[string]int32{
		"in_use": s.AcquiredConns(),
		"idle":   s.IdleConns(),
		"total":  s.TotalConns(),
		"max":    s.MaxConns(),
	} {
		ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(n), state)
	}
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquire, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, s.AcquireDuration().Seconds())
}

// RecordStoreSize sets the number of records held for a kind.
func RecordStoreSize(kind string, n int) {
	StoreRecords.WithLabelValues(kind).Set(float64(n))
}
