package sink

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// StdoutSink prints one line per sample in the shape text form.
type StdoutSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutSink writes to w, or os.Stdout when w is nil.
func NewStdoutSink(w io.Writer) *StdoutSink {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutSink{out: w}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) WriteBatch(samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.out)
	for _, sample := range samples {
		if sample == nil {
			continue
		}
		if _, err := io.WriteString(w, sample.Data.String()+"\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

var _ ports.Sink = (*StdoutSink)(nil)
