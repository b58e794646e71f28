package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/heading.report/internal/api"
	"github.com/banshee-data/heading.report/internal/config"
	"github.com/banshee-data/heading.report/internal/db"
	"github.com/banshee-data/heading.report/internal/monitoring"
	"github.com/banshee-data/heading.report/internal/serialport"
	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/timeutil"
	"github.com/banshee-data/heading.report/internal/wire"
)

// Simulated transceiver used by -dev.
const (
	devFrameInterval  = 20 * time.Millisecond
	devDegreesPerStep = 1.5
)

type serviceOptions struct {
	dev   bool
	out   io.Writer
	clock timeutil.Clock
}

// pipeline is the shape-independent view of a telemetry.Pipeline.
type pipeline interface {
	Run(ctx context.Context, r io.Reader) error
	ReportDisconnected(ctx context.Context, cause error) error
	Stats() telemetry.Stats
}

func newPipeline(shape wire.Shape, cfg telemetry.PipelineConfig, ch *telemetry.Channel, clock timeutil.Clock) (pipeline, error) {
	switch shape {
	case wire.ShapeMagnetometer:
		return telemetry.NewPipeline[wire.Magnetometer](cfg, wire.DecodeMagnetometer, ch, clock), nil
	case wire.ShapeIMU:
		return telemetry.NewPipeline[wire.IMU](cfg, wire.DecodeIMU, ch, clock), nil
	default:
		return nil, fmt.Errorf("unknown record shape %q", shape)
	}
}

// runService wires link -> pipeline -> channel -> display and runs until
// ctx is cancelled. The display loop runs on the calling goroutine.
func runService(ctx context.Context, cfg *config.Config, opts serviceOptions) error {
	if opts.clock == nil {
		opts.clock = timeutil.RealClock{}
	}
	if opts.out == nil {
		opts.out = io.Discard
	}
	shape := cfg.GetRecordShape()

	ch := telemetry.NewChannel(cfg.GetChannelSize())
	display := telemetry.NewDisplay(ch)
	defer display.Close()

	pipe, err := newPipeline(shape, cfg.Pipeline(), ch, opts.clock)
	if err != nil {
		return err
	}

	linkCfg := serialport.LinkConfig{
		Target:       cfg.Target(),
		Options:      cfg.PortOptions(),
		Reconnect:    cfg.GetReconnect(),
		ReconnectMax: cfg.GetReconnectMax(),
		Clock:        opts.clock,
		OnError: func(ctx context.Context, err error) error {
			// Session failures were already reported by the pipeline.
			if errors.Is(err, serialport.ErrUnavailable) {
				return pipe.ReportDisconnected(ctx, err)
			}
			return nil
		},
	}
	if opts.dev {
		linkCfg.Target = serialport.Target{Path: "simulated"}
		linkCfg.Open = serialport.MockOpener(shape, devFrameInterval, devDegreesPerStep)
	}
	link := serialport.NewLink(linkCfg)

	var (
		store   *db.DB
		session db.Session
	)
	if path := cfg.GetDBPath(); path != "" {
		store, err = db.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		session, err = store.StartSession(string(shape), link.State().Target, opts.clock.Now())
		if err != nil {
			return err
		}
		monitoring.Logf("recording session %s to %s", session.ID, path)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	// serial link and telemetry pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := link.Run(ctx, pipe.Run)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, telemetry.ErrConsumerClosed) {
			errc <- fmt.Errorf("serial link: %w", err)
		}
		monitoring.Logf("link routine terminated")
	}()

	if addr := cfg.GetListen(); addr != "" {
		var samples api.SampleStore
		if store != nil {
			samples = store
		}
		mux := api.NewServer(display, pipe, link, samples).ServeMux()
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				return err
			}
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- fmt.Errorf("failed to start server: %w", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				monitoring.Logf("HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					monitoring.Logf("HTTP server force close error: %v", err)
				}
			}
			monitoring.Logf("HTTP server routine stopped")
		}()
	}

	p := &presenter{display: display, store: store, session: session.ID, out: opts.out}
	runErr := p.loop(ctx, opts.clock, cfg.GetTick(), errc)

	display.Close()
	cancel()
	wg.Wait()
	p.tick()
	return runErr
}

// presenter drains the display each tick, records what it drained and
// prints the operator line when it changes.
type presenter struct {
	display *telemetry.Display
	store   *db.DB
	session string
	out     io.Writer

	batch []telemetry.Sample
	line  string
}

func (p *presenter) loop(ctx context.Context, clock timeutil.Clock, tick time.Duration, errc <-chan error) error {
	ticker := clock.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case <-ticker.C():
			p.tick()
		}
	}
}

func (p *presenter) tick() {
	p.batch = p.batch[:0]
	p.display.Update(func(s telemetry.Sample) { p.batch = append(p.batch, s) })

	if p.store != nil && len(p.batch) > 0 {
		if err := p.store.RecordSamples(p.session, p.batch); err != nil {
			monitoring.Logf("failed to record %d samples: %v", len(p.batch), err)
		}
	}

	if line := p.display.String(); line != p.line {
		p.line = line
		fmt.Fprintln(p.out, line)
	}
}
