package ports

import "github.com/ajmhs/training-listeners-read-write/internal/domain"

// SampleReader gives a listener access to the samples currently available on a subscription.
type SampleReader interface {
	// Take removes and returns the available samples.
	Take() []domain.Sample
}

// Listener receives callbacks from a feed. Callbacks run on goroutines owned by the feed
// and may be concurrent with each other.
type Listener interface {
	OnDataAvailable(reader SampleReader)
	OnSubscriptionMatched(status domain.SubscriptionMatchedStatus)
}

// ListenerFuncs adapts plain functions into a Listener. A nil field is a no-op.
type ListenerFuncs struct {
	DataAvailable       func(reader SampleReader)
	SubscriptionMatched func(status domain.SubscriptionMatchedStatus)
}

func (f ListenerFuncs) OnDataAvailable(reader SampleReader) {
	if f.DataAvailable != nil {
		f.DataAvailable(reader)
	}
}

func (f ListenerFuncs) OnSubscriptionMatched(status domain.SubscriptionMatchedStatus) {
	if f.SubscriptionMatched != nil {
		f.SubscriptionMatched(status)
	}
}

var _ Listener = ListenerFuncs{}
