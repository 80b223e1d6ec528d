package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ajmhs/training-listeners-read-write/pkg/shapesub"
)

func main() {
	flow, err := shapesub.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := flow.Run(ctx)
	if err != nil {
		log.Fatalf("subscriber exited: %v", err)
	}
	log.Printf("finished %s after %d samples", res.State, res.SamplesRead)
}
