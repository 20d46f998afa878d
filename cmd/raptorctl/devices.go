package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink"
)

func discoverCommand(ctx context.Context, log *zap.Logger, args []string) error {
	fs := newFlagSet("discover")
	cfgPath := fs.StringP("config", "c", "", "Path to configuration file")
	broadcast := fs.StringP("broadcast", "b", "", "Broadcast address, optionally with port (default 255.255.255.255)")
	timeout := fs.DurationP("timeout", "t", 0, "Listen window (default 2s)")
	window := fs.String("window", "", "Window mode: idle or fixed")
	dedupe := fs.Bool("dedupe", false, "Collapse duplicate answers by uuid")
	asJSON := fs.Bool("json", false, "Print devices as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := raptorlink.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dcfg := cfg.Discovery
	if *timeout > 0 {
		dcfg.Timeout = *timeout
	}
	if *window != "" {
		dcfg.Window = raptorlink.DiscoveryWindow(*window)
	}
	if fs.Changed("dedupe") {
		dcfg.Dedupe = *dedupe
	}

	devices, err := raptorlink.Discover(ctx, dcfg, *broadcast, log)
	if err != nil && len(devices) == 0 {
		return err
	}

	if *asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("no devices answered")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tIP\tHARDWARE\tFIRMWARE")
	for _, d := range devices {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.UUID, d.IPAddress, d.HardwareVersion, d.FirmwareVersion)
	}
	return tw.Flush()
}

func versionCommand(ctx context.Context, log *zap.Logger, args []string) error {
	fs := newFlagSet("version")
	cfgPath := fs.StringP("config", "c", "", "Path to configuration file")
	addr := fs.StringP("addr", "a", "", "Device address, host or host:port (required)")
	useGRPC := fs.Bool("grpc", false, "Use the gRPC CommandService instead of the stream transport")
	framing := fs.String("framing", "", "Stream framing: delimited or raw")
	timeout := fs.DurationP("timeout", "t", 0, "Overall timeout (default 5s)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		return fmt.Errorf("--addr is required")
	}

	cfg, err := raptorlink.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var commander raptorlink.Commander
	if *useGRPC {
		gcfg := cfg.GRPC
		if *timeout > 0 {
			gcfg.Timeout = *timeout
		}
		client := raptorlink.NewGRPCCommandClient(gcfg, log)
		defer client.Close()
		commander = client
	} else {
		ccfg := cfg.Command
		if *framing != "" {
			ccfg.Framing = raptorlink.Framing(*framing)
		}
		if *timeout > 0 {
			ccfg.Timeout = *timeout
		}
		client, err := raptorlink.NewCommandClient(ccfg, log)
		if err != nil {
			return err
		}
		commander = client
	}

	start := time.Now()
	info, err := raptorlink.GetVersion(ctx, commander, *addr)
	if err != nil {
		return err
	}
	fmt.Printf("firmware=%s hardware=%s rtt=%s\n", info.FirmwareVersion, info.HardwareVersion, time.Since(start).Round(time.Microsecond))
	return nil
}
