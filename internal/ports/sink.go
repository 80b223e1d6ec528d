package ports

import "github.com/ajmhs/training-listeners-read-write/internal/domain"

// Sink receives the valid samples a collector emits.
type Sink interface {
	WriteBatch(samples []*domain.Sample) error
	Name() string
}
