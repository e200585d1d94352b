package obs

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"toucan/internal/schema"
)

const maxEventType = int(schema.EventMarket)

// Metrics collects engine counters and processing latency. Every value is kept as a local
// atomic and mirrored into prometheus collectors once registered.
type Metrics struct {
	eventCounts   [maxEventType + 1]uint64
	outputs       uint64
	recoverable   uint64
	unrecoverable uint64
	refused       uint64
	queueDrops    uint64
	lastSequence  uint64

	processLatency LatencyStats

	promEvents   *prometheus.CounterVec
	promOutputs  *prometheus.CounterVec
	promErrors   *prometheus.CounterVec
	promRefused  *prometheus.CounterVec
	promDrops    prometheus.Counter
	promSequence prometheus.Gauge
	promPnl      *prometheus.GaugeVec
	promLatency  prometheus.Histogram
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts    map[schema.EventType]uint64
	Outputs        uint64
	Recoverable    uint64
	Unrecoverable  uint64
	Refused        uint64
	QueueDrops     uint64
	LastSequence   uint64
	ProcessLatency LatencySnapshot
}

// NewMetrics allocates a metrics container with unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		promEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toucan_engine_events_total",
				Help: "Events processed by the engine",
			},
			[]string{"type"},
		),
		promOutputs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toucan_engine_outputs_total",
				Help: "Audit outputs produced by the engine",
			},
			[]string{"kind"},
		),
		promErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toucan_engine_errors_total",
				Help: "Errors recorded in audits",
			},
			[]string{"kind"},
		),
		promRefused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toucan_risk_refused_total",
				Help: "Order requests refused by risk",
			},
			[]string{"request"},
		),
		promDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "toucan_feed_drops_total",
				Help: "Events dropped by a full feed queue",
			},
		),
		promSequence: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toucan_engine_sequence",
				Help: "Last audit sequence",
			},
		),
		promPnl: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toucan_instrument_pnl",
				Help: "Realised PnL per instrument",
			},
			[]string{"instrument"},
		),
		promLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toucan_engine_process_seconds",
				Help:    "Engine process latency",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.promEvents, m.promOutputs, m.promErrors, m.promRefused,
		m.promDrops, m.promSequence, m.promPnl, m.promLatency,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveEvent counts one processed event of eventType and its process latency.
func (m *Metrics) ObserveEvent(eventType schema.EventType, sequence uint64, d time.Duration) {
	if m == nil {
		return
	}
	idx := int(eventType)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	atomic.StoreUint64(&m.lastSequence, sequence)
	m.processLatency.Observe(d)

	m.promEvents.WithLabelValues(eventType.String()).Inc()
	m.promSequence.Set(float64(sequence))
	m.promLatency.Observe(d.Seconds())
}

// IncOutput records one audit output of kind.
func (m *Metrics) IncOutput(kind string) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.outputs, 1)
	m.promOutputs.WithLabelValues(kind).Inc()
}

// IncError records one audit error.
func (m *Metrics) IncError(unrecoverable bool) {
	if m == nil {
		return
	}
	if unrecoverable {
		atomic.AddUint64(&m.unrecoverable, 1)
		m.promErrors.WithLabelValues("unrecoverable").Inc()
		return
	}
	atomic.AddUint64(&m.recoverable, 1)
	m.promErrors.WithLabelValues("recoverable").Inc()
}

// AddRefused records n risk refused requests of kind.
func (m *Metrics) AddRefused(request string, n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.refused, uint64(n))
	m.promRefused.WithLabelValues(request).Add(float64(n))
}

// IncQueueDrop records a dropped feed event.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
	m.promDrops.Inc()
}

// SetPnl publishes the realised PnL of instrument.
func (m *Metrics) SetPnl(instrument schema.InstrumentKey, pnl float64) {
	if m == nil {
		return
	}
	m.promPnl.WithLabelValues(string(instrument)).Set(pnl)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	return Snapshot{
		EventCounts:    eventCounts,
		Outputs:        atomic.LoadUint64(&m.outputs),
		Recoverable:    atomic.LoadUint64(&m.recoverable),
		Unrecoverable:  atomic.LoadUint64(&m.unrecoverable),
		Refused:        atomic.LoadUint64(&m.refused),
		QueueDrops:     atomic.LoadUint64(&m.queueDrops),
		LastSequence:   atomic.LoadUint64(&m.lastSequence),
		ProcessLatency: m.processLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
