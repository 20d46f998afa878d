package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink"
	"github.com/ghalamif/raptorlink/internal/simulator"
)

func ingestCommand(ctx context.Context, log *zap.Logger, args []string) error {
	fs := newFlagSet("ingest")
	cfgPath := fs.StringP("config", "c", "", "Path to configuration file")
	port := fs.StringP("port", "p", "", "Serial port (overrides PORT)")
	baud := fs.Int("baudrate", 0, "Serial baud rate (overrides BAUDRATE)")
	backend := fs.String("backend", "", "Storage backend: influx, timescale or kafka")
	stdin := fs.Bool("stdin", false, "Read telemetry lines from stdin instead of a serial port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := raptorlink.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *baud > 0 {
		cfg.Serial.BaudRate = *baud
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}

	opts := []raptorlink.RuntimeOption{raptorlink.WithLogger(log)}
	if *stdin {
		opts = append(opts, raptorlink.WithLink(os.Stdin))
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}
	} else if err := cfg.ValidateIngest(); err != nil {
		return err
	}

	log.Info("starting ingest",
		zap.String("serial", cfg.Serial.Port),
		zap.String("backend", cfg.Storage.Backend),
		zap.String("metrics", cfg.Metrics.Addr))

	rt, err := raptorlink.NewRuntime(cfg, opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func simulateCommand(ctx context.Context, log *zap.Logger, args []string) error {
	fs := newFlagSet("simulate")
	uuid := fs.Uint64("uuid", 1, "Device uuid")
	firmware := fs.String("firmware", "1.0.0", "Reported firmware version")
	hardware := fs.String("hardware", "0.1.0", "Reported hardware version")
	discoveryAddr := fs.String("discovery-addr", "0.0.0.0:8000", "UDP discovery listen address, empty to disable")
	commandAddr := fs.String("command-addr", "0.0.0.0:50051", "TCP command listen address, empty to disable")
	grpcAddr := fs.String("grpc-addr", "", "gRPC CommandService listen address, empty to disable")
	framing := fs.String("framing", string(raptorlink.FramingDelimited), "Stream framing: delimited or raw")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dev, err := simulator.Start(ctx, simulator.Config{
		UUID:            *uuid,
		FirmwareVersion: *firmware,
		HardwareVersion: *hardware,
		DiscoveryAddr:   *discoveryAddr,
		CommandAddr:     *commandAddr,
		GRPCAddr:        *grpcAddr,
		Framing:         raptorlink.Framing(*framing),
	}, log)
	if err != nil {
		return err
	}
	return dev.Wait()
}

func validateCommand(_ context.Context, _ *zap.Logger, args []string) error {
	fs := newFlagSet("validate")
	cfgPath := fs.StringP("config", "c", "", "Path to configuration file to validate")
	ingest := fs.Bool("ingest", false, "Also require serial and storage settings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := raptorlink.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *ingest {
		if err := cfg.ValidateIngest(); err != nil {
			return err
		}
	}
	fmt.Printf("config %s looks good (backend=%s, discovery port=%d, command port=%d)\n",
		displayPath(*cfgPath), cfg.Storage.Backend, cfg.Discovery.Port, cfg.Command.Port)
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "<environment>"
	}
	return p
}

var statsKeys = []string{
	"raptor_samples_parsed_total",
	"raptor_samples_ingested_total",
	"raptor_queue_dropped_total",
	"raptor_sink_flush_failures_total",
	"raptor_queue_length",
}

func statsCommand(ctx context.Context, _ *zap.Logger, args []string) error {
	fs := newFlagSet("stats")
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(resp.Body, statsKeys)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] parsed=%.0f ingested=%.0f dropped=%.0f flush_failures=%.0f queue=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["raptor_samples_parsed_total"],
		values["raptor_samples_ingested_total"],
		values["raptor_queue_dropped_total"],
		values["raptor_sink_flush_failures_total"],
		values["raptor_queue_length"],
	)
	return nil
}

// scanMetrics pulls unlabeled counter and gauge values for keys out of the
// text exposition format. Missing metrics read as zero.
func scanMetrics(r io.Reader, keys []string) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}
	out := make(map[string]float64, len(keys))
	for _, key := range keys {
		out[key] = 0
		family, ok := families[key]
		if !ok {
			continue
		}
		for _, m := range family.GetMetric() {
			if len(m.GetLabel()) > 0 {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetUntyped() != nil:
				out[key] = m.GetUntyped().GetValue()
			}
		}
	}
	return out, nil
}
