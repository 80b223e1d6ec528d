package memfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

const waitFor = 2 * time.Second

type event struct {
	samples []domain.Sample
	delta   int
}

// recorder forwards every callback onto a channel for the test goroutine.
func recorder() (ports.Listener, <-chan event) {
	ch := make(chan event, 128)
	return ports.ListenerFuncs{
		DataAvailable: func(r ports.SampleReader) {
			ch <- event{samples: r.Take()}
		},
		SubscriptionMatched: func(s domain.SubscriptionMatchedStatus) {
			ch <- event{delta: s.CurrentCountChange}
		},
	}, ch
}

func next(t *testing.T, ch <-chan event) event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for listener callback")
		return event{}
	}
}

func connect(t *testing.T, c *Connector, domainID int) ports.Feed {
	t.Helper()
	f, err := c.Connect(context.Background(), domainID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriterSamplesReachReader(t *testing.T) {
	c := NewConnector(ports.Policy{}, &mockObs{})
	pubFeed := connect(t, c, 0)
	subFeed := connect(t, c, 0)

	w, err := pubFeed.NewWriter("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)

	sub, err := subFeed.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	assert.Equal(t, "Oblong", sub.Topic())

	l, events := recorder()
	sub.SetListener(l)
	assert.Equal(t, 1, next(t, events).delta)

	require.NoError(t, w.Write(domain.ShapeTypeExtended{Color: "RED", X: 5}))
	ev := next(t, events)
	require.Len(t, ev.samples, 1)
	got := ev.samples[0]
	assert.True(t, got.Info.Valid)
	assert.Equal(t, "RED", got.Data.Color)
	assert.Equal(t, int32(5), got.Data.X)
	assert.Equal(t, uint64(1), got.Info.SequenceNumber)
	assert.NotEmpty(t, got.Info.PublicationHandle)
}

func TestDisposeAndCloseDeliverMetadataSamples(t *testing.T) {
	c := NewConnector(ports.Policy{}, &mockObs{})
	f := connect(t, c, 3)

	sub, err := f.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	l, events := recorder()
	sub.SetListener(l)

	w, err := f.NewWriter("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	assert.Equal(t, 1, next(t, events).delta)

	require.NoError(t, w.Write(domain.ShapeTypeExtended{Color: "RED"}))
	require.NoError(t, w.Write(domain.ShapeTypeExtended{Color: "BLUE"}))
	require.NoError(t, w.Dispose("RED"))

	var data []domain.Sample
	for len(data) < 3 {
		data = append(data, next(t, events).samples...)
	}
	assert.False(t, data[2].Info.Valid)
	assert.Equal(t, domain.InstanceDisposed, data[2].Info.InstanceState)
	assert.Equal(t, "RED", data[2].Data.Color)

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ports.ErrFeedClosed)
	assert.ErrorIs(t, w.Write(domain.ShapeTypeExtended{Color: "RED"}), ports.ErrFeedClosed)

	var (
		lost     bool
		noWriter []domain.Sample
	)
	for !lost || len(noWriter) == 0 {
		ev := next(t, events)
		if ev.delta == -1 {
			lost = true
		}
		noWriter = append(noWriter, ev.samples...)
	}
	require.Len(t, noWriter, 1)
	assert.Equal(t, "BLUE", noWriter[0].Data.Color)
	assert.Equal(t, domain.InstanceNoWriters, noWriter[0].Info.InstanceState)
}

func TestTopicTypeMismatch(t *testing.T) {
	c := NewConnector(ports.Policy{}, &mockObs{})
	f := connect(t, c, 0)

	_, err := f.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)

	_, err = f.NewWriter("Oblong", "ShapeType")
	assert.True(t, errors.Is(err, ports.ErrTopicTypeMismatch))

	_, err = f.Subscribe("", domain.ShapeTypeName)
	assert.ErrorIs(t, err, ports.ErrInvalidTopic)
}

func TestDomainsAreIsolated(t *testing.T) {
	c := NewConnector(ports.Policy{}, &mockObs{})
	pub := connect(t, c, 1)
	subFeed := connect(t, c, 2)

	sub, err := subFeed.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	l, events := recorder()
	sub.SetListener(l)

	w, err := pub.NewWriter("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	require.NoError(t, w.Write(domain.ShapeTypeExtended{Color: "RED"}))

	select {
	case ev := <-events:
		t.Fatalf("unexpected callback across domains: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropPolicyKeepsQueueBounded(t *testing.T) {
	c := NewConnector(ports.Policy{MaxQueueLen: 2, OnQueueFull: "drop"}, &mockObs{})
	f := connect(t, c, 0)

	sub, err := f.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	w, err := f.NewWriter("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write(domain.ShapeTypeExtended{Color: "RED", X: int32(i)}))
	}

	l, events := recorder()
	sub.SetListener(l)

	var data []domain.Sample
	deadline := time.After(waitFor)
	for len(data) < 2 {
		select {
		case ev := <-events:
			data = append(data, ev.samples...)
		case <-deadline:
			t.Fatalf("expected 2 queued samples, got %d", len(data))
		}
	}
	assert.Len(t, data, 2)
	assert.Equal(t, int32(0), data[0].Data.X)
}

func TestFeedCloseUnmatchesWriters(t *testing.T) {
	c := NewConnector(ports.Policy{}, &mockObs{})
	pub, err := c.Connect(context.Background(), 0)
	require.NoError(t, err)
	subFeed := connect(t, c, 0)

	_, err = pub.NewWriter("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)

	sub, err := subFeed.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	l, events := recorder()
	sub.SetListener(l)
	assert.Equal(t, 1, next(t, events).delta)

	require.NoError(t, pub.Close())
	assert.Equal(t, -1, next(t, events).delta)

	_, err = pub.Subscribe("Oblong", domain.ShapeTypeName)
	assert.ErrorIs(t, err, ports.ErrFeedClosed)
	require.NoError(t, pub.Close())
}

func TestConnectHonoursContext(t *testing.T) {
	c := NewConnector(ports.Policy{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Connect(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = c.Connect(context.Background(), -1)
	assert.Error(t, err)
}

func TestMaxBatchSizeCapsEachTake(t *testing.T) {
	c := NewConnector(ports.Policy{MaxBatchSize: 2}, &mockObs{})
	pubFeed := connect(t, c, 0)
	subFeed := connect(t, c, 0)

	sub, err := subFeed.Subscribe("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)
	w, err := pubFeed.NewWriter("Oblong", domain.ShapeTypeName)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write(domain.ShapeTypeExtended{Color: "RED", X: int32(i)}))
	}

	l, events := recorder()
	sub.SetListener(l)

	var got []domain.Sample
	takes := 0
	for len(got) < 5 {
		ev := next(t, events)
		if ev.delta != 0 {
			continue
		}
		takes++
		assert.LessOrEqual(t, len(ev.samples), 2)
		got = append(got, ev.samples...)
	}
	require.Len(t, got, 5)
	assert.GreaterOrEqual(t, takes, 3)
	for i, s := range got {
		assert.Equal(t, int32(i), s.Data.X)
	}
}
