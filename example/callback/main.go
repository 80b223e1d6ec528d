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

func main() {
	flow, err := shapesub.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []shapesub.Sample) error {
		for _, sample := range batch {
			fmt.Printf("%s writer=%s seq=%d %s\n",
				sample.Info.SourceTimestamp.Format(time.RFC3339Nano),
				sample.Info.PublicationHandle,
				sample.Info.SequenceNumber,
				sample.Data,
			)
		}
		return nil
	}

	if _, err := flow.Run(ctx, shapesub.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
