// Command compass reads heading telemetry from the serial transceiver,
// shows the smoothed heading, records it and serves it over HTTP.
//
// Usage:
//
//	compass [flags]                             run the service
//	compass report [-db] [-out] [-tz] [-rates]  summarise and plot a recorded session
//	compass status [-addr]                      query a running service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/heading.report/internal/config"
	"github.com/banshee-data/heading.report/internal/monitoring"
	"github.com/banshee-data/heading.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file (defaults built in when empty)")
	devMode     = flag.Bool("dev", false, "Use a simulated transceiver instead of the serial port")
	port        = flag.String("port", "", "Serial port to use; empty discovers the transceiver by USB id")
	listen      = flag.String("listen", ":8080", "HTTP listen address; empty disables the API")
	dbPath      = flag.String("db", "compass.db", "SQLite recording file; empty disables recording")
	shape       = flag.String("shape", "magnetometer", "Record shape sent by the firmware: magnetometer or imu")
	verbose     = flag.Bool("verbose", false, "Log per-frame diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		var err error
		switch args[0] {
		case "report":
			err = runReport(args[1:], os.Stdout)
		case "status":
			err = runStatus(ctx, args[1:], os.Stdout, http.DefaultClient)
		default:
			err = fmt.Errorf("unknown command %q", args[0])
		}
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(flag.CommandLine, cfg); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	log.Printf("%s starting", version.Get())
	if err := runService(ctx, cfg, serviceOptions{dev: *devMode, out: os.Stdout}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("compass: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.LoadConfig(path)
}

// applyFlags copies explicitly set command-line flags over the config file
// values, then revalidates.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) error {
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "port":
			cfg.Port = &v
		case "listen":
			cfg.Listen = &v
		case "db":
			cfg.DBPath = &v
		case "shape":
			cfg.RecordShape = &v
		}
	})
	return cfg.Validate()
}
