package natsfeed

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/observability"
	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

func TestSubjectsFor(t *testing.T) {
	subj, err := subjectsFor("shapes", 7, "Oblong")
	require.NoError(t, err)
	assert.Equal(t, "shapes.7.Oblong.data", subj.data)
	assert.Equal(t, "shapes.7.Oblong.presence", subj.presence)
	assert.Equal(t, "shapes.7.Oblong.discover", subj.discover)

	for _, bad := range []string{"", "a.b", "a*", ">", "with space"} {
		_, err := subjectsFor("shapes", 0, bad)
		assert.ErrorIs(t, err, ports.ErrInvalidTopic, "topic %q", bad)
	}
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, nats.DefaultURL, cfg.URL)
	assert.Equal(t, "shapes", cfg.Prefix)
	assert.Equal(t, 3*time.Second, cfg.Lease)
	require.NoError(t, cfg.Validate())

	cfg.Prefix = "bad.prefix"
	assert.Error(t, cfg.Validate())

	_, err := NewConnector(Config{Lease: time.Millisecond}, nil)
	assert.Error(t, err)
}

func TestEnvelopeToSample(t *testing.T) {
	ts := time.Unix(100, 0).UTC()
	shape := domain.ShapeTypeExtended{Color: "RED", X: 3}

	s, err := envelope{WriterID: "w1", Kind: kindData, Seq: 4, SourceTimestamp: ts, Data: &shape}.toSample(ts)
	require.NoError(t, err)
	assert.True(t, s.Info.Valid)
	assert.Equal(t, "RED", s.Data.Color)
	assert.Equal(t, uint64(4), s.Info.SequenceNumber)
	assert.Equal(t, "w1", s.Info.PublicationHandle)

	s, err = envelope{Kind: kindDispose, Key: "RED"}.toSample(ts)
	require.NoError(t, err)
	assert.False(t, s.Info.Valid)
	assert.Equal(t, domain.InstanceDisposed, s.Info.InstanceState)
	assert.Equal(t, "RED", s.Data.Color)

	s, err = envelope{Kind: kindUnregister, Key: "BLUE"}.toSample(ts)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceNoWriters, s.Info.InstanceState)

	_, err = envelope{Kind: kindData}.toSample(ts)
	assert.Error(t, err)
	_, err = envelope{Kind: "bogus"}.toSample(ts)
	assert.Error(t, err)
}

func TestWriterTrackerLeases(t *testing.T) {
	var (
		mu     sync.Mutex
		deltas []int
	)
	tr := newWriterTracker(200*time.Millisecond, func(d int) {
		mu.Lock()
		defer mu.Unlock()
		deltas = append(deltas, d)
	})
	snapshot := func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), deltas...)
	}

	tr.alive("a", time.Hour)
	tr.alive("a", time.Hour)
	tr.alive("b", 0)
	assert.Equal(t, []int{1, 1}, snapshot())
	assert.Equal(t, 2, tr.count())

	tr.gone("a")
	tr.gone("a")
	assert.Equal(t, []int{1, 1, -1}, snapshot())

	require.Eventually(t, func() bool { return tr.count() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 1, -1, -1}, snapshot())

	tr.stop()
	tr.alive("c", 0)
	assert.Equal(t, 0, tr.count())
}

type capture struct {
	mu      sync.Mutex
	samples []domain.Sample
	deltas  []int
}

func (c *capture) OnDataAvailable(r ports.SampleReader) {
	taken := r.Take()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, taken...)
}

func (c *capture) OnSubscriptionMatched(s domain.SubscriptionMatchedStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas = append(c.deltas, s.CurrentCountChange)
}

func msg(t *testing.T, subject string, v any) *nats.Msg {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return &nats.Msg{Subject: subject, Data: body}
}

func TestSubscriptionHandlers(t *testing.T) {
	s := newSubscription("Oblong", domain.ShapeTypeName, time.Hour, observability.NewLogObs("test"))
	defer s.tracker.stop()

	shape := domain.ShapeTypeExtended{Color: "GREEN"}
	s.handlePresence(msg(t, "p", announcement{WriterID: "w1", Type: domain.ShapeTypeName, State: presenceAlive, LeaseMillis: 60_000}))
	s.handleData(msg(t, "d", envelope{WriterID: "w1", Type: domain.ShapeTypeName, Kind: kindData, Data: &shape}))
	s.handleData(msg(t, "d", envelope{WriterID: "w1", Type: "ShapeType", Kind: kindData, Data: &shape}))
	s.handleData(&nats.Msg{Subject: "d", Data: []byte("{not json")})

	c := &capture{}
	s.SetListener(c)
	assert.Equal(t, []int{1}, c.deltas)
	require.Len(t, c.samples, 1)
	assert.Equal(t, "GREEN", c.samples[0].Data.Color)

	s.handleData(msg(t, "d", envelope{WriterID: "w1", Type: domain.ShapeTypeName, Kind: kindDispose, Key: "GREEN"}))
	s.handlePresence(msg(t, "p", announcement{WriterID: "w1", Type: domain.ShapeTypeName, State: presenceGone}))

	require.Len(t, c.samples, 2)
	assert.False(t, c.samples[1].Info.Valid)
	assert.Equal(t, []int{1, -1}, c.deltas)

	s.closed = true
	s.handleData(msg(t, "d", envelope{WriterID: "w2", Type: domain.ShapeTypeName, Kind: kindData, Data: &shape}))
	assert.Len(t, c.samples, 2)
}
