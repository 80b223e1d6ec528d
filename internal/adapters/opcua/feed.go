// Package opcua reads shapes from an OPC UA server. Each shape field is a monitored node;
// the server counts as a single publisher.
package opcua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	log "github.com/sirupsen/logrus"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/observability"
	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

var logger = logging.For("opcua")

type Connector struct {
	cfg Config
	obs ports.Observability
}

func NewConnector(cfg Config, obs ports.Observability) (*Connector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = observability.NewLogObs("opcua")
	}
	return &Connector{cfg: cfg, obs: obs}, nil
}

func (c *Connector) Connect(ctx context.Context, domainID int) (ports.Feed, error) {
	client, err := opcua.NewClient(c.cfg.Endpoint, c.buildClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	logger.WithFields(log.Fields{
		"endpoint": c.cfg.Endpoint,
		"domain":   domainID,
	}).Debug("session open")

	return &Feed{
		cfg:      c.cfg,
		obs:      c.obs,
		client:   client,
		domainID: domainID,
	}, nil
}

func (c *Connector) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

type Feed struct {
	cfg      Config
	obs      ports.Observability
	client   *opcua.Client
	domainID int

	mu     sync.Mutex
	closed bool
	subs   []*subscription
}

func (f *Feed) Subscribe(topic, typeName string) (ports.Subscription, error) {
	if topic == "" {
		return nil, ports.ErrInvalidTopic
	}
	if typeName != domain.ShapeTypeName {
		return nil, fmt.Errorf("opcua: topic %q carries %s, not %s: %w", topic, domain.ShapeTypeName, typeName, ports.ErrTopicTypeMismatch)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ports.ErrFeedClosed
	}

	nodes := f.cfg.nodesFor(f.domainID, topic)
	ctx, cancel := context.WithCancel(context.Background())
	notifyCh := make(chan *opcua.PublishNotificationData, len(nodes)*4)
	sub, err := f.client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: f.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opcua subscribe: %w", err)
	}

	handleMap := make(map[uint32]string, len(nodes))
	for i, node := range nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			cleanupOnError(ctx, cancel, sub)
			return nil, fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if f.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(f.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			cleanupOnError(ctx, cancel, sub)
			return nil, fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 {
			cleanupOnError(ctx, cancel, sub)
			return nil, fmt.Errorf("monitor node %q failed: empty result", node.NodeID)
		}
		if res.Results[0].StatusCode != ua.StatusOK {
			cleanupOnError(ctx, cancel, sub)
			return nil, fmt.Errorf("monitor node %q failed: %s", node.NodeID, res.Results[0].StatusCode)
		}
		handleMap[handle] = node.Field
	}

	s := newSubscription(topic, f.cfg.Color, handleMap, f.obs)
	s.sub = sub
	s.cancel = cancel
	s.wg.Add(1)
	go s.consume(ctx, notifyCh)
	s.matched(1)

	f.subs = append(f.subs, s)
	return s, nil
}

func (f *Feed) NewWriter(string, string) (ports.Writer, error) {
	return nil, ports.ErrReadOnlyFeed
}

func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	var err error
	for _, s := range subs {
		if e := s.Close(); e != nil && !errors.Is(e, ports.ErrFeedClosed) {
			err = errors.Join(err, e)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e := f.client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
		err = errors.Join(err, e)
	}
	return err
}

func cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription) {
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	cancel()
}

var (
	_ ports.Connector = (*Connector)(nil)
	_ ports.Feed      = (*Feed)(nil)
)
