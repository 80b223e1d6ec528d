package natsfeed

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Envelope kinds.
const (
	kindData       = "data"
	kindDispose    = "dispose"
	kindUnregister = "unregister"
)

// Presence states.
const (
	presenceAlive = "alive"
	presenceGone  = "gone"
)

// envelope is the JSON body published on a topic's data subject.
type envelope struct {
	WriterID        string                    `json:"writer_id"`
	Type            string                    `json:"type"`
	Kind            string                    `json:"kind"`
	Seq             uint64                    `json:"seq"`
	SourceTimestamp time.Time                 `json:"ts"`
	Data            *domain.ShapeTypeExtended `json:"data,omitempty"`
	Key             string                    `json:"key,omitempty"`
}

func (e envelope) toSample(received time.Time) (domain.Sample, error) {
	info := domain.SampleInfo{
		SourceTimestamp:    e.SourceTimestamp,
		ReceptionTimestamp: received,
		PublicationHandle:  e.WriterID,
		SequenceNumber:     e.Seq,
	}
	switch e.Kind {
	case kindData:
		if e.Data == nil {
			return domain.Sample{}, fmt.Errorf("data envelope from %s without payload", e.WriterID)
		}
		info.Valid = true
		info.InstanceState = domain.InstanceAlive
		return domain.Sample{Data: *e.Data, Info: info}, nil
	case kindDispose:
		info.InstanceState = domain.InstanceDisposed
	case kindUnregister:
		info.InstanceState = domain.InstanceNoWriters
	default:
		return domain.Sample{}, fmt.Errorf("unknown envelope kind %q", e.Kind)
	}
	return domain.Sample{Data: domain.ShapeTypeExtended{Color: e.Key}, Info: info}, nil
}

// announcement is published on a topic's presence subject.
type announcement struct {
	WriterID    string `json:"writer_id"`
	Type        string `json:"type"`
	State       string `json:"state"`
	LeaseMillis int64  `json:"lease_ms"`
}

func (a announcement) lease() time.Duration {
	return time.Duration(a.LeaseMillis) * time.Millisecond
}

type subjects struct {
	data     string
	presence string
	discover string
}

func subjectsFor(prefix string, domainID int, topic string) (subjects, error) {
	if err := validateToken(topic); err != nil {
		return subjects{}, fmt.Errorf("natsfeed: topic %q: %w", topic, err)
	}
	base := fmt.Sprintf("%s.%d.%s", prefix, domainID, topic)
	return subjects{
		data:     base + ".data",
		presence: base + ".presence",
		discover: base + ".discover",
	}, nil
}

// validateToken rejects names that would change the meaning of a NATS subject.
func validateToken(name string) error {
	if name == "" {
		return ports.ErrInvalidTopic
	}
	if strings.ContainsAny(name, ".*> \t\r\n") {
		return ports.ErrInvalidTopic
	}
	return nil
}
