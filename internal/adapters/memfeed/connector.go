// Package memfeed is an in-process feed. Readers and writers created from any Connect
// call with the same domain id see each other.
package memfeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/observability"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Connector hands out feeds bound to shared in-process domains.
type Connector struct {
	policy ports.Policy
	obs    ports.Observability

	mu      sync.Mutex
	domains map[int]*space
}

// NewConnector returns a connector whose readers follow policy. A nil obs logs through logrus only.
func NewConnector(policy ports.Policy, obs ports.Observability) *Connector {
	if obs == nil {
		obs = observability.NewLogObs("memfeed")
	}
	return &Connector{
		policy:  applyPolicyDefaults(policy),
		obs:     obs,
		domains: make(map[int]*space),
	}
}

func (c *Connector) Connect(ctx context.Context, domainID int) (ports.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if domainID < 0 {
		return nil, fmt.Errorf("memfeed: domain id %d must not be negative", domainID)
	}

	c.mu.Lock()
	sp, ok := c.domains[domainID]
	if !ok {
		sp = &space{id: domainID, topics: make(map[string]*topic)}
		c.domains[domainID] = sp
	}
	sp.refs++
	c.mu.Unlock()

	return &Feed{conn: c, space: sp}, nil
}

func (c *Connector) release(sp *space) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sp.refs--
	if sp.refs <= 0 {
		delete(c.domains, sp.id)
	}
}

// space is one joined domain.
type space struct {
	id   int
	refs int

	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	name     string
	typeName string
	readers  map[*subscription]struct{}
	writers  map[*writer]struct{}
}

// lookup returns the topic, registering it on first use. Callers hold sp.mu.
func (sp *space) lookup(name, typeName string) (*topic, error) {
	if name == "" {
		return nil, fmt.Errorf("memfeed: empty topic: %w", ports.ErrInvalidTopic)
	}
	t, ok := sp.topics[name]
	if !ok {
		t = &topic{
			name:     name,
			typeName: typeName,
			readers:  make(map[*subscription]struct{}),
			writers:  make(map[*writer]struct{}),
		}
		sp.topics[name] = t
		return t, nil
	}
	if t.typeName != typeName {
		return nil, fmt.Errorf("memfeed: topic %q is %s, not %s: %w", name, t.typeName, typeName, ports.ErrTopicTypeMismatch)
	}
	return t, nil
}

// forget drops a topic once nothing uses it. Callers hold sp.mu.
func (sp *space) forget(t *topic) {
	if len(t.readers) == 0 && len(t.writers) == 0 {
		delete(sp.topics, t.name)
	}
}

func applyPolicyDefaults(p ports.Policy) ports.Policy {
	if p.MaxQueueLen <= 0 {
		p.MaxQueueLen = 10_000
	}
	if p.IdleSleep <= 0 {
		p.IdleSleep = 5 * time.Millisecond
	}
	if p.OnQueueFull == "" {
		p.OnQueueFull = "block"
	}
	return p
}

var _ ports.Connector = (*Connector)(nil)
