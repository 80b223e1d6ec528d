package observability

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names understood by PromObs.
const (
	SamplesRead       = "shapes_samples_read_total"
	SamplesInvalid    = "shapes_samples_invalid_total"
	EmitFailed        = "shapes_emit_failed_total"
	FeedDropped       = "shapes_feed_dropped_total"
	MatchedPublishers = "shapes_matched_publishers"
	FeedQueueLength   = "shapes_feed_queue_length"
	SampleLatency     = "shapes_sample_latency_seconds"
)

// PromObs records shape metrics on a registry of its own, so any number of subscribers
// can live in one process. Serve it with Handler.
type PromObs struct {
	reg      *prometheus.Registry
	logger   *log.Entry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	read := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplesRead,
		Help: "Valid samples counted by the collector.",
	})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplesInvalid,
		Help: "Metadata-only samples (dispose, no writers) skipped by the collector.",
	})
	emitFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: EmitFailed,
		Help: "Sample batches the sink failed to accept.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: FeedDropped,
		Help: "Samples lost due to reader queue backpressure policies.",
	})
	matched := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MatchedPublishers,
		Help: "Publishers currently matched with the reader.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: FeedQueueLength,
		Help: "Samples buffered in in-process reader queues.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    SampleLatency,
		Help:    "Delay between a sample's source timestamp and its reception by the collector.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(read, invalid, emitFailed, dropped, matched, queueGauge, latency)

	return &PromObs{
		reg:    reg,
		logger: logging.For("observability"),
		counters: map[string]prometheus.Counter{
			SamplesRead:    read,
			SamplesInvalid: invalid,
			EmitFailed:     emitFailed,
			FeedDropped:    dropped,
		},
		gauges: map[string]prometheus.Gauge{
			MatchedPublishers: matched,
			FeedQueueLength:   queueGauge,
		},
		histos: map[string]prometheus.Observer{
			SampleLatency: latency,
		},
	}
}

// Registry returns the registry holding this instance's metrics.
func (p *PromObs) Registry() *prometheus.Registry { return p.reg }

// Handler exposes the registry in the Prometheus text format.
func (p *PromObs) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.WithFields(toLogFields(fields)).Info(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.WithFields(toLogFields(fields)).WithError(err).Error(msg)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.WithFields(toLogFields(fields)).WithError(err).WithField("severity", "critical").Error(msg)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) AddGauge(name string, delta float64) {
	if g, ok := p.gauges[name]; ok {
		g.Add(delta)
	}
}

func (p *PromObs) RecordInvalid(s *domain.Sample) {
	p.IncCounter(SamplesInvalid, 1)
	if s != nil {
		p.logger.WithFields(log.Fields{
			"color": s.Data.Color,
			"state": s.Info.InstanceState.String(),
		}).Debug("metadata sample")
	}
}

func toLogFields(fields []ports.Field) log.Fields {
	out := make(log.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
