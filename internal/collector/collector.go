// Package collector implements a listener that counts and emits valid samples until a
// target count is reached or its context is cancelled.
package collector

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// DefaultWaitInterval is how long the driver loop sleeps between checks.
const DefaultWaitInterval = 5 * time.Second

// Unbounded is the target used when no sample count is given.
const Unbounded uint64 = math.MaxUint64

// State is the lifecycle phase of a collector.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateDrained
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateRunning:
		return "RUNNING"
	case StateDrained:
		return "DRAINED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateDrained || s == StateCancelled }

// Option customizes a Collector.
type Option func(*Collector)

// WithSink sets where valid samples are emitted. Defaults to nothing but the count.
func WithSink(s ports.Sink) Option {
	return func(c *Collector) { c.sink = s }
}

// WithObservability plugs in metrics and structured logs.
func WithObservability(obs ports.Observability) Option {
	return func(c *Collector) { c.obs = obs }
}

// WithWaitInterval overrides DefaultWaitInterval.
func WithWaitInterval(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.wait = d
		}
	}
}

// WithOutput sets the writer used for status lines. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Collector) {
		if w != nil {
			c.out = w
		}
	}
}

// WithTypeName sets the type name shown in the sleeping notice.
func WithTypeName(name string) Option {
	return func(c *Collector) { c.typeName = name }
}

// Collector is a ports.Listener bounded by a target sample count.
type Collector struct {
	target   uint64
	wait     time.Duration
	typeName string
	sink     ports.Sink
	obs      ports.Observability
	logger   *log.Entry

	outMu sync.Mutex
	out   io.Writer

	samplesRead atomic.Uint64
	state       atomic.Int32

	reached     chan struct{}
	reachedOnce sync.Once
}

// New returns a collector that stops after target valid samples.
func New(target uint64, opts ...Option) *Collector {
	c := &Collector{
		target:   target,
		wait:     DefaultWaitInterval,
		typeName: domain.ShapeTypeName,
		out:      os.Stdout,
		logger:   logging.For("collector"),
		reached:  make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if target == 0 {
		c.markReached()
	}
	return c
}

// SamplesRead returns the number of valid samples seen so far.
func (c *Collector) SamplesRead() uint64 { return c.samplesRead.Load() }

// Target returns the sample count the collector waits for.
func (c *Collector) Target() uint64 { return c.target }

// State returns the current lifecycle phase.
func (c *Collector) State() State { return State(c.state.Load()) }

// Done evaluates the termination condition against ctx.
func (c *Collector) Done(ctx context.Context) bool {
	return ctx.Err() != nil || c.samplesRead.Load() >= c.target
}

// OnDataAvailable drains every sample currently available on the reader.
func (c *Collector) OnDataAvailable(reader ports.SampleReader) {
	samples := reader.Take()
	if len(samples) == 0 {
		return
	}

	now := time.Now()
	valid := make([]*domain.Sample, 0, len(samples))
	for i := range samples {
		s := &samples[i]
		if !s.Info.Valid {
			if c.obs != nil {
				c.obs.RecordInvalid(s)
			}
			continue
		}
		valid = append(valid, s)
		if c.obs != nil && !s.Info.SourceTimestamp.IsZero() {
			c.obs.ObserveLatency("shapes_sample_latency_seconds", now.Sub(s.Info.SourceTimestamp).Seconds())
		}
	}
	if len(valid) == 0 {
		return
	}

	// Count first; the sink may block.
	read := c.samplesRead.Add(uint64(len(valid)))
	if c.obs != nil {
		c.obs.IncCounter("shapes_samples_read_total", float64(len(valid)))
	}
	if read >= c.target {
		c.markReached()
	}

	if c.sink == nil {
		return
	}
	if err := c.sink.WriteBatch(valid); err != nil {
		if c.obs != nil {
			c.obs.IncCounter("shapes_emit_failed_total", 1)
			c.obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: c.sink.Name()})
		} else {
			c.logger.WithError(err).WithField("sink", c.sink.Name()).Error("sink write failed")
		}
	}
}

// OnSubscriptionMatched reports publishers joining or leaving.
func (c *Collector) OnSubscriptionMatched(status domain.SubscriptionMatchedStatus) {
	delta := status.CurrentCountChange
	if delta == 0 {
		return
	}
	verb := "found"
	if delta < 0 {
		verb = "lost"
	}
	c.println(fmt.Sprintf("Inside on_subscription_matched: %s a publisher", verb))
	c.logger.WithFields(log.Fields{
		"current": status.CurrentCount,
		"delta":   delta,
	}).Debug("subscription matched")
	if c.obs != nil {
		c.obs.AddGauge("shapes_matched_publishers", float64(delta))
	}
}

// Run blocks until the target count is reached or ctx is cancelled and returns the
// terminal state.
func (c *Collector) Run(ctx context.Context) State {
	c.state.Store(int32(StateRunning))

	for !c.Done(ctx) {
		c.println(fmt.Sprintf("::%s subscriber sleeping up to %s...", c.typeName, c.wait))

		timer := time.NewTimer(c.wait)
		select {
		case <-ctx.Done():
		case <-c.reached:
		case <-timer.C:
		}
		timer.Stop()
	}

	final := StateDrained
	if c.samplesRead.Load() < c.target {
		final = StateCancelled
	}
	c.state.Store(int32(final))
	c.logger.WithFields(log.Fields{
		"state":        final.String(),
		"samples_read": c.samplesRead.Load(),
	}).Debug("collector finished")
	return final
}

func (c *Collector) markReached() {
	c.reachedOnce.Do(func() { close(c.reached) })
}

func (c *Collector) println(line string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, line)
}

var _ ports.Listener = (*Collector)(nil)
