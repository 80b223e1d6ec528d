package opcua

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// serverHandle identifies the OPC UA server as the only publication on a subscription.
const serverHandle = "opcua-server"

type subscription struct {
	topic     string
	handleMap map[uint32]string
	obs       ports.Observability

	sub    *opcua.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	listener ports.Listener
	snapshot domain.ShapeTypeExtended
	seq      uint64
	pending  []domain.Sample
	statuses []domain.SubscriptionMatchedStatus
	current  int
	total    int
}

func newSubscription(topic, color string, handleMap map[uint32]string, obs ports.Observability) *subscription {
	return &subscription{
		topic:     topic,
		handleMap: handleMap,
		obs:       obs,
		snapshot:  domain.ShapeTypeExtended{Color: color},
	}
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) SetListener(l ports.Listener) {
	s.mu.Lock()
	s.listener = l
	statuses := s.statuses
	s.statuses = nil
	hasData := len(s.pending) > 0
	s.mu.Unlock()

	if l == nil {
		return
	}
	for _, st := range statuses {
		l.OnSubscriptionMatched(st)
	}
	if hasData {
		l.OnDataAvailable(s)
	}
}

func (s *subscription) Take() []domain.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Close cancels the server subscription and reports the server as lost to the
// listener before detaching it.
func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ports.ErrFeedClosed
	}
	s.mu.Unlock()

	s.matched(-1)

	s.mu.Lock()
	s.closed = true
	s.listener = nil
	s.mu.Unlock()

	var err error
	if s.sub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = s.sub.Cancel(ctx)
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return err
}

func (s *subscription) consume(ctx context.Context, notifyCh <-chan *opcua.PublishNotificationData) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-notifyCh:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			if msg.Error != nil {
				s.obs.LogError("opcua_notification_error", msg.Error, ports.Field{Key: "topic", Value: s.topic})
				continue
			}
			s.processNotification(msg.Value, time.Now())
		}
	}
}

// processNotification folds one data change notification into the shape snapshot and
// queues the result as a single sample. A bad status on any item makes it invalid.
func (s *subscription) processNotification(value interface{}, now time.Time) {
	data, ok := value.(*ua.DataChangeNotification)
	if !ok || len(data.MonitoredItems) == 0 {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	bad := false
	var sourceTS time.Time
	for _, item := range data.MonitoredItems {
		if item == nil || item.Value == nil {
			continue
		}
		field, known := s.handleMap[item.ClientHandle]
		if !known {
			continue
		}
		if item.Value.Status != ua.StatusOK {
			bad = true
			s.obs.LogError("opcua_bad_status",
				fmt.Errorf("field %s: %s", field, item.Value.Status),
				ports.Field{Key: "topic", Value: s.topic})
			continue
		}
		if err := applyField(&s.snapshot, field, item.Value.Value); err != nil {
			bad = true
			s.obs.LogError("opcua_value_conversion_failed", err, ports.Field{Key: "topic", Value: s.topic})
			continue
		}
		if item.Value.SourceTimestamp.After(sourceTS) {
			sourceTS = item.Value.SourceTimestamp
		}
	}
	if sourceTS.IsZero() {
		sourceTS = now
	}

	s.seq++
	sample := domain.Sample{
		Info: domain.SampleInfo{
			Valid:              !bad,
			InstanceState:      domain.InstanceAlive,
			SourceTimestamp:    sourceTS,
			ReceptionTimestamp: now,
			PublicationHandle:  serverHandle,
			SequenceNumber:     s.seq,
		},
	}
	if bad {
		sample.Data = domain.ShapeTypeExtended{Color: s.snapshot.Color}
	} else {
		sample.Data = s.snapshot
	}
	s.pending = append(s.pending, sample)
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l.OnDataAvailable(s)
	}
}

func (s *subscription) matched(delta int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current += delta
	st := domain.SubscriptionMatchedStatus{
		CurrentCount:       s.current,
		CurrentCountChange: delta,
	}
	if delta > 0 {
		s.total += delta
		st.TotalCountChange = delta
	}
	st.TotalCount = s.total
	l := s.listener
	if l == nil {
		s.statuses = append(s.statuses, st)
	}
	s.mu.Unlock()

	if l != nil {
		l.OnSubscriptionMatched(st)
	}
}

func applyField(shape *domain.ShapeTypeExtended, field string, v *ua.Variant) error {
	if field == FieldColor {
		str, ok := variantToString(v)
		if !ok {
			return fmt.Errorf("field %s: unsupported variant type %T", field, variantValue(v))
		}
		shape.Color = str
		return nil
	}

	f, ok := variantToFloat(v)
	if !ok {
		return fmt.Errorf("field %s: unsupported variant type %T", field, variantValue(v))
	}
	switch field {
	case FieldX:
		shape.X = toInt32(f)
	case FieldY:
		shape.Y = toInt32(f)
	case FieldShapeSize:
		shape.ShapeSize = toInt32(f)
	case FieldFillKind:
		shape.FillKind = domain.ShapeFillKind(toInt32(f))
	case FieldAngle:
		shape.Angle = float32(f)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func toInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int32(math.Round(f))
}

func variantValue(v *ua.Variant) interface{} {
	if v == nil {
		return nil
	}
	return v.Value()
}

func variantToString(v *ua.Variant) (string, bool) {
	switch val := variantValue(v).(type) {
	case string:
		return val, true
	case *ua.LocalizedText:
		if val == nil {
			return "", false
		}
		return val.Text, true
	default:
		return "", false
	}
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	switch val := variantValue(v).(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

var (
	_ ports.Subscription = (*subscription)(nil)
	_ ports.SampleReader = (*subscription)(nil)
)
