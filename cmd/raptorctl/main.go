package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, log *zap.Logger, args []string) error
}

var commands = []command{
	{"discover", "Broadcast a discovery probe and list the devices that answer", discoverCommand},
	{"version", "Ask one device for its firmware and hardware versions", versionCommand},
	{"ingest", "Stream serial telemetry into the configured storage backend", ingestCommand},
	{"simulate", "Run a simulated device on this host", simulateCommand},
	{"validate", "Load and validate configuration without starting anything", validateCommand},
	{"stats", "Poll the Prometheus metrics endpoint and print live counters", statsCommand},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		printUsage()
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		os.Exit(2)
	}

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, logger, os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Error("command failed", zap.String("command", name), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("RAPTOR_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func printUsage() {
	fmt.Printf("raptorctl talks to Raptor devices and moves their telemetry.\n\nUsage:\n  raptorctl <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Printf("  %-10s %s\n", c.name, c.usage)
	}
	fmt.Print(`
Examples:
  raptorctl discover --broadcast 192.168.1.255 --timeout 3s
  raptorctl version --addr 192.168.1.40
  raptorctl ingest --config ./raptor.yaml
  raptorctl simulate --command-addr 127.0.0.1:50051
  raptorctl stats --url http://localhost:9100/metrics --interval 1s
`)
}
