package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector with lazily registered Prometheus metrics.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	merges    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	emitted   prometheus.Counter
	dropped   prometheus.Counter
	cacheHits prometheus.Counter
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a collector registering on reg (the default
// registerer when nil) under namespace ("timeweave" when empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "timeweave"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.merges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "merge",
			Name:      "calls_total",
			Help:      "Merge calls by source and result (ok or error kind).",
		}, []string{"source", "result"})
		p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Wall time of merge calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 10), // 0.5ms .. ~1.9s
		}, []string{"source"})
		p.emitted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "merge",
			Name:      "rows_emitted_total",
			Help:      "Merged rows emitted.",
		})
		p.dropped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "merge",
			Name:      "base_records_dropped_total",
			Help:      "Base records that produced no merged row.",
		})
		p.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Merge requests answered from the result cache.",
		})

		p.reg.MustRegister(p.merges, p.duration, p.emitted, p.dropped, p.cacheHits)
	})
}

func (p *Prometheus) RecordMerge(source, result string, elapsed time.Duration) {
	p.ensureRegistered()
	p.merges.WithLabelValues(source, result).Inc()
	p.duration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (p *Prometheus) RecordRows(emitted, dropped int) {
	p.ensureRegistered()
	p.emitted.Add(float64(emitted))
	p.dropped.Add(float64(dropped))
}

func (p *Prometheus) IncrementCacheHit() {
	p.ensureRegistered()
	p.cacheHits.Inc()
}
