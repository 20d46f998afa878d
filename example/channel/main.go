package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/raptorlink"
)

func main() {
	flow, err := raptorlink.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writer, batches, closeBatches := raptorlink.NewChannelWriter("fanout", 32)
	defer closeBatches()

	go fanoutWorker("ingest", batches)

	if err := flow.Run(ctx, raptorlink.StreamOutWriter(writer)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, batches <-chan []raptorlink.Point) {
	for batch := range batches {
		var sum float64
		for _, p := range batch {
			sum += p.Value
		}
		fmt.Printf("[%s] %d points, mean %.4f at %s\n", name, len(batch), sum/float64(len(batch)), time.Now().Format(time.RFC3339))
	}
}
