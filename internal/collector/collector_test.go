package collector

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

type batchReader struct {
	batch []domain.Sample
}

func (r *batchReader) Take() []domain.Sample {
	out := r.batch
	r.batch = nil
	return out
}

func valid(color string) domain.Sample {
	return domain.Sample{
		Data: domain.ShapeTypeExtended{Color: color, X: 1, Y: 2, ShapeSize: 30},
		Info: domain.SampleInfo{Valid: true, InstanceState: domain.InstanceAlive},
	}
}

func disposed(color string) domain.Sample {
	return domain.Sample{
		Data: domain.ShapeTypeExtended{Color: color},
		Info: domain.SampleInfo{InstanceState: domain.InstanceDisposed},
	}
}

func matched(delta int) domain.SubscriptionMatchedStatus {
	return domain.SubscriptionMatchedStatus{CurrentCountChange: delta}
}

type recordingSink struct {
	mu      sync.Mutex
	samples []domain.Sample
	err     error
}

func (s *recordingSink) WriteBatch(batch []*domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range batch {
		s.samples = append(s.samples, *sample)
	}
	return s.err
}

func (s *recordingSink) Name() string { return "recording" }

type stubObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	invalid  int
	errors   []error
}

func newStubObs() *stubObs {
	return &stubObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (o *stubObs) LogInfo(string, ...ports.Field) {}
func (o *stubObs) LogError(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}
func (o *stubObs) LogCritical(string, error, ...ports.Field) {}
func (o *stubObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}
func (o *stubObs) ObserveLatency(string, float64) {}
func (o *stubObs) SetGauge(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] = v
}
func (o *stubObs) AddGauge(name string, delta float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] += delta
}
func (o *stubObs) RecordInvalid(*domain.Sample) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invalid++
}

func TestCountsOnlyValidSamplesAcrossBatches(t *testing.T) {
	sink := &recordingSink{}
	obs := newStubObs()
	c := New(Unbounded, WithSink(sink), WithObservability(obs), WithOutput(&bytes.Buffer{}))

	c.OnDataAvailable(&batchReader{batch: []domain.Sample{valid("RED"), disposed("RED"), valid("BLUE")}})
	c.OnSubscriptionMatched(matched(1))
	c.OnDataAvailable(&batchReader{batch: []domain.Sample{disposed("BLUE")}})
	c.OnDataAvailable(&batchReader{})
	c.OnSubscriptionMatched(matched(-1))
	c.OnDataAvailable(&batchReader{batch: []domain.Sample{valid("GREEN")}})

	assert.Equal(t, uint64(3), c.SamplesRead())
	require.Len(t, sink.samples, 3)
	assert.Equal(t, "GREEN", sink.samples[2].Data.Color)
	assert.Equal(t, 2, obs.invalid)
	assert.Equal(t, float64(3), obs.counters["shapes_samples_read_total"])
	assert.Equal(t, float64(0), obs.gauges["shapes_matched_publishers"])
}

func TestInvalidThenValidInSameBatch(t *testing.T) {
	c := New(Unbounded, WithOutput(&bytes.Buffer{}))
	c.OnDataAvailable(&batchReader{batch: []domain.Sample{disposed("RED"), valid("RED")}})
	assert.Equal(t, uint64(1), c.SamplesRead())
}

func TestMatchedFoundThenLost(t *testing.T) {
	var out bytes.Buffer
	c := New(10, WithOutput(&out))

	c.OnSubscriptionMatched(matched(1))
	c.OnSubscriptionMatched(matched(-1))
	c.OnSubscriptionMatched(matched(0))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "found a publisher")
	assert.Contains(t, lines[1], "lost a publisher")
	assert.Equal(t, uint64(0), c.SamplesRead())
}

func TestRunDrainsWholeBatchPastTarget(t *testing.T) {
	c := New(3, WithWaitInterval(time.Hour), WithOutput(&bytes.Buffer{}))

	go c.OnDataAvailable(&batchReader{batch: []domain.Sample{
		valid("A"), valid("B"), valid("C"), valid("D"), valid("E"),
	}})

	done := make(chan State, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case st := <-done:
		assert.Equal(t, StateDrained, st)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not observe the target being reached")
	}
	assert.Equal(t, uint64(5), c.SamplesRead())
	assert.Equal(t, StateDrained, c.State())
}

func TestRunExitsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	var out bytes.Buffer
	c := New(2, WithOutput(&out))
	assert.Equal(t, StateInitializing, c.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, StateCancelled, c.Run(ctx))
	assert.Equal(t, uint64(0), c.SamplesRead())
	assert.Empty(t, out.String())
	assert.True(t, c.State().Terminal())
}

func TestRunWakesOnCancellationWithinInterval(t *testing.T) {
	c := New(Unbounded, WithWaitInterval(time.Hour), WithOutput(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan State, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case st := <-done:
		assert.Equal(t, StateCancelled, st)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunPollsUntilTargetReached(t *testing.T) {
	var out safeBuffer
	c := New(2, WithWaitInterval(5*time.Millisecond), WithOutput(&out))

	go func() {
		time.Sleep(30 * time.Millisecond)
		c.OnDataAvailable(&batchReader{batch: []domain.Sample{valid("A")}})
		time.Sleep(30 * time.Millisecond)
		c.OnDataAvailable(&batchReader{batch: []domain.Sample{valid("B")}})
	}()

	st := c.Run(context.Background())
	assert.Equal(t, StateDrained, st)
	assert.Equal(t, uint64(2), c.SamplesRead())
	assert.Contains(t, out.String(), "::ShapeTypeExtended subscriber sleeping up to 5ms...")
}

func TestZeroTargetIsDrainedWithoutWaiting(t *testing.T) {
	c := New(0, WithWaitInterval(time.Hour), WithOutput(&bytes.Buffer{}))
	assert.Equal(t, StateDrained, c.Run(context.Background()))
}

func TestConcurrentDeliveryLosesNoUpdates(t *testing.T) {
	c := New(Unbounded, WithOutput(&bytes.Buffer{}))

	const workers, batches = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < batches; i++ {
				c.OnDataAvailable(&batchReader{batch: []domain.Sample{valid("X"), disposed("X"), valid("Y")}})
				c.OnSubscriptionMatched(matched(1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*batches*2), c.SamplesRead())
}

func TestSinkFailureStillCounts(t *testing.T) {
	obs := newStubObs()
	sink := &recordingSink{err: errors.New("disk full")}
	c := New(1, WithSink(sink), WithObservability(obs), WithOutput(&bytes.Buffer{}))

	c.OnDataAvailable(&batchReader{batch: []domain.Sample{valid("RED")}})

	assert.Equal(t, uint64(1), c.SamplesRead())
	assert.True(t, c.Done(context.Background()))
	require.Len(t, obs.errors, 1)
	assert.Equal(t, float64(1), obs.counters["shapes_emit_failed_total"])
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "INITIALIZING", StateInitializing.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "DRAINED", StateDrained.String())
	assert.Equal(t, "CANCELLED", StateCancelled.String())
	assert.False(t, StateRunning.Terminal())
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
