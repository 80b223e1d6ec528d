package ports

import "github.com/ajmhs/training-listeners-read-write/internal/domain"

// SampleQueue buffers samples between a writer and a reader's delivery loop.
type SampleQueue interface {
	Enqueue(s *domain.Sample) bool
	DequeueBatch(max int) []*domain.Sample
	Len() int
}
