package shapesub

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	samples chan Sample
	matched chan int
}

func newRecorder() *recorder {
	return &recorder{samples: make(chan Sample, 64), matched: make(chan int, 8)}
}

func (r *recorder) listener() Listener {
	return ListenerFuncs{
		DataAvailable: func(reader SampleReader) {
			for _, s := range reader.Take() {
				r.samples <- s
			}
		},
		SubscriptionMatched: func(st MatchedStatus) {
			r.matched <- st.CurrentCountChange
		},
	}
}

func TestPublisherPublishAndDispose(t *testing.T) {
	ctx := context.Background()
	loop := NewLoopback(Policy{IdleSleep: time.Millisecond}, &stubObservability{})

	feed, err := loop.Connect(ctx, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer feed.Close()
	sub, err := feed.Subscribe("Square", ShapeTypeName)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	rec := newRecorder()
	sub.SetListener(rec.listener())

	pub, err := NewPublisher(ctx, loop, &PublisherConfig{DomainID: 2, Topic: "Square"})
	if err != nil {
		t.Fatalf("NewPublisher returned error: %v", err)
	}

	if err := pub.Publish(Shape{Color: "GREEN", X: 5}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := pub.Dispose("GREEN"); err != nil {
		t.Fatalf("Dispose returned error: %v", err)
	}

	first := waitSample(t, rec)
	if !first.Info.Valid || first.Data.X != 5 {
		t.Fatalf("unexpected first sample: %+v", first)
	}
	second := waitSample(t, rec)
	if second.Info.Valid || second.Data.Color != "GREEN" {
		t.Fatalf("expected invalid dispose sample, got %+v", second)
	}

	if err := pub.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := pub.Publish(Shape{Color: "GREEN"}); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
	if err := pub.Close(ctx); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestNewPublisherValidates(t *testing.T) {
	ctx := context.Background()
	if _, err := NewPublisher(ctx, nil, nil); err == nil {
		t.Fatal("expected error for nil connector")
	}
	loop := NewLoopback(Policy{}, &stubObservability{})
	if _, err := NewPublisher(ctx, loop, &PublisherConfig{DomainID: -1}); err == nil {
		t.Fatal("expected error for negative domain")
	}
}

func waitSample(t *testing.T, rec *recorder) Sample {
	t.Helper()
	select {
	case s := <-rec.samples:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sample")
	}
	return Sample{}
}
