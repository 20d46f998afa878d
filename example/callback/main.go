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

	callback := func(_ context.Context, batch []raptorlink.Point) error {
		for _, p := range batch {
			fmt.Printf("%s %s %s=%v\n",
				time.Unix(0, p.Timestamp).Format(time.RFC3339Nano),
				p.Measurement,
				p.Field,
				p.Value,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, raptorlink.StreamOutCallback("stdout", callback)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}
