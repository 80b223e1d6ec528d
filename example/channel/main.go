package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajmhs/training-listeners-read-write/pkg/shapesub"
)

// Publishes two bouncing shapes on a loopback feed and counts them from a channel.
func main() {
	cfg := shapesub.DefaultConfig()
	cfg.SampleCount = 200
	cfg.WaitInterval = time.Second

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := shapesub.NewLoopback(cfg.Feed.Loopback.Policy, nil)
	pub, err := shapesub.NewPublisher(ctx, loop, &shapesub.PublisherConfig{Topic: cfg.Topic})
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer pub.Close(context.Background())
	pub.Bounce("RED", 20*time.Millisecond, 0)
	pub.Bounce("GREEN", 30*time.Millisecond, 0)

	sink, batches, closeBatches := shapesub.NewChannelSink("fanout", 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fanoutWorker("colors", batches)
	}()

	flow, err := shapesub.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	_, err = flow.StreamIN(shapesub.StreamInConnector(loop)).Run(ctx, shapesub.StreamOutSink(sink))
	closeBatches()
	<-done
	if err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, batches <-chan []shapesub.Sample) {
	perColor := make(map[string]int)
	for batch := range batches {
		for _, s := range batch {
			perColor[s.Data.Color]++
		}
	}
	fmt.Printf("[%s] received per color: %v\n", name, perColor)
}
