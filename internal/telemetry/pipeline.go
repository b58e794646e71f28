package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/banshee-data/heading.report/internal/compass"
	"github.com/banshee-data/heading.report/internal/filter"
	"github.com/banshee-data/heading.report/internal/framing"
	"github.com/banshee-data/heading.report/internal/monitoring"
	"github.com/banshee-data/heading.report/internal/timeutil"
)

// ErrTransport wraps read failures from the byte source. The pipeline has
// already published a Disconnected sample when it returns this error.
var ErrTransport = errors.New("telemetry: transport failure")

// PipelineConfig sizes the pipeline's buffers and filters. Zero values take
// the defaults below.
type PipelineConfig struct {
	FrameCapacity  int
	ReadBufferSize int
	MagWindow      int
	GyroWindow     int
	InitialFill    float64
}

const (
	DefaultReadBufferSize = 256
	DefaultMagWindow      = 16
	DefaultGyroWindow     = 4
)

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.FrameCapacity <= 0 {
		c.FrameCapacity = framing.DefaultCapacity
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.MagWindow <= 0 {
		c.MagWindow = DefaultMagWindow
	}
	if c.GyroWindow <= 0 {
		c.GyroWindow = DefaultGyroWindow
	}
	return c
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	BytesRead        uint64 `json:"bytes_read"`
	FramesDecoded    uint64 `json:"frames_decoded"`
	Overflows        uint64 `json:"overflows"`
	DecodeErrors     uint64 `json:"decode_errors"`
	SamplesPublished uint64 `json:"samples_published"`
}

// StatsSource is implemented by every Pipeline instantiation.
type StatsSource interface {
	Stats() Stats
}

type counters struct {
	bytesRead        atomic.Uint64
	framesDecoded    atomic.Uint64
	overflows        atomic.Uint64
	decodeErrors     atomic.Uint64
	samplesPublished atomic.Uint64
}

// Pipeline reassembles frames of record type T, smooths each axis and
// publishes one Sample per decoded frame.
//
// Framing and decode failures are counted and logged at debug level but
// never stop the pipeline. All methods except Stats must be called from the
// producer goroutine.
type Pipeline[T Record] struct {
	cfg    PipelineConfig
	frames *framing.FrameBuffer[T]
	out    *Channel
	clock  timeutil.Clock

	magX, magY *filter.MovingAverage
	gyro       [3]*filter.MovingAverage

	heading     float64
	status      Status
	statusKnown bool

	stats counters
}

// NewPipeline wires a frame decoder for T to out.
func NewPipeline[T Record](cfg PipelineConfig, decode framing.Decoder[T], out *Channel, clock timeutil.Clock) *Pipeline[T] {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p := &Pipeline[T]{
		cfg:    cfg,
		frames: framing.NewFrameBuffer(cfg.FrameCapacity, decode),
		out:    out,
		clock:  clock,
		magX:   filter.NewMovingAverage(cfg.MagWindow, cfg.InitialFill),
		magY:   filter.NewMovingAverage(cfg.MagWindow, cfg.InitialFill),
	}
	for i := range p.gyro {
		p.gyro[i] = filter.NewMovingAverage(cfg.GyroWindow, cfg.InitialFill)
	}
	return p
}

// Stats returns the current counters. Safe for concurrent use.
func (p *Pipeline[T]) Stats() Stats {
	return Stats{
		BytesRead:        p.stats.bytesRead.Load(),
		FramesDecoded:    p.stats.framesDecoded.Load(),
		Overflows:        p.stats.overflows.Load(),
		DecodeErrors:     p.stats.decodeErrors.Load(),
		SamplesPublished: p.stats.samplesPublished.Load(),
	}
}

// Run reads from r until the context is cancelled, the consumer closes the
// channel, or r fails. A read failure publishes a Disconnected sample and is
// returned wrapped in ErrTransport. Partial frames are discarded on return so
// a reconnect starts on a clean frame boundary.
func (p *Pipeline[T]) Run(ctx context.Context, r io.Reader) error {
	defer p.frames.Reset()

	if err := p.setStatus(ctx, Connected, nil); err != nil {
		return err
	}

	buf := make([]byte, p.cfg.ReadBufferSize)
	for {
		if err := p.stopped(ctx); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			p.stats.bytesRead.Add(uint64(n))
			if perr := p.Process(ctx, buf[:n]); perr != nil {
				return perr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			terr := fmt.Errorf("%w: %w", ErrTransport, err)
			if serr := p.ReportDisconnected(ctx, terr); serr != nil {
				return serr
			}
			return terr
		}
	}
}

// Process feeds one window of stream bytes through the frame buffer,
// publishing a sample for every complete frame it contains. It returns an
// error only when publishing fails.
func (p *Pipeline[T]) Process(ctx context.Context, window []byte) error {
	for len(window) > 0 {
		res := p.frames.Write(window)
		switch res.Outcome {
		case framing.NeedMore:
		case framing.Overflow:
			p.stats.overflows.Add(1)
			monitoring.Debugf("frame exceeded %d bytes; discarded partial frame", p.frames.Capacity())
		case framing.DecodeError:
			p.stats.decodeErrors.Add(1)
			monitoring.Debugf("dropping undecodable frame: %v", res.Err)
		case framing.Decoded:
			p.stats.framesDecoded.Add(1)
			if err := p.publish(ctx, p.smooth(res.Record)); err != nil {
				return err
			}
		}
		window = res.Remaining
	}
	return nil
}

// ReportDisconnected publishes a Disconnected sample carrying cause, unless
// the last published status was already Disconnected.
func (p *Pipeline[T]) ReportDisconnected(ctx context.Context, cause error) error {
	return p.setStatus(ctx, Disconnected, cause)
}

func (p *Pipeline[T]) setStatus(ctx context.Context, status Status, cause error) error {
	if p.statusKnown && p.status == status {
		return nil
	}
	s := Sample{
		Time:    p.clock.Now(),
		Status:  status,
		Heading: p.heading,
	}
	if cause != nil {
		s.Err = cause.Error()
	}
	if err := p.publish(ctx, s); err != nil {
		return err
	}
	p.status = status
	p.statusKnown = true
	return nil
}

func (p *Pipeline[T]) smooth(rec T) Sample {
	axes := rec.Axes()
	x := p.magX.Add(axes.MagX)
	y := p.magY.Add(axes.MagY)
	p.heading = compass.Wrap(compass.HeadingDegrees(x, y))

	s := Sample{
		Time:     p.clock.Now(),
		Status:   Connected,
		Measured: true,
		Heading:  p.heading,
		Command:  axes.Command,
	}
	if axes.HasGyro {
		var rates [3]float64
		for i, g := range p.gyro {
			rates[i] = g.Add(axes.Gyro[i])
		}
		s.AngularRates = &rates
	}
	if axes.HasTemperature {
		t := axes.Temperature
		s.Temperature = &t
	}
	return s
}

func (p *Pipeline[T]) publish(ctx context.Context, s Sample) error {
	if err := p.out.Publish(ctx, s); err != nil {
		return err
	}
	p.stats.samplesPublished.Add(1)
	return nil
}

func (p *Pipeline[T]) stopped(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.out.Done():
		return ErrConsumerClosed
	default:
		return nil
	}
}
