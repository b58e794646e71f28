package serialport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/heading.report/internal/wire"
)

// ErrPortClosed is returned by the in-memory ports after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort implements Port with configurable behaviour for testing.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call once ReadBuffer is empty
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	Closed      bool
	ReadCalls   int
	ReadTimeout time.Duration

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read returns buffered data, then ReadError, then blocks or reports EOF.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	for {
		if t.Closed {
			return 0, ErrPortClosed
		}
		if t.ReadBuffer.Len() > 0 {
			return t.ReadBuffer.Read(p)
		}
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			return 0, err
		}
		if !t.BlockReads {
			return 0, io.EOF
		}
		t.readCond.Wait()
	}
}

// Write captures p in WriteBuffer.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, ErrPortClosed
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// SetReadTimeout implements TimeoutPort.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadTimeout = timeout
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// IsClosed reports whether Close was called.
func (t *TestableSerialPort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Closed
}

// MockTransmitter is a Port that emits frames from a slowly rotating
// synthetic compass, used for --dev runs without hardware.
type MockTransmitter struct {
	shape    wire.Shape
	interval time.Duration
	step     float64

	r *io.PipeReader
	w *io.PipeWriter

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	written bytes.Buffer
}

// NewMockTransmitter starts emitting one frame of the given shape every
// interval, turning step degrees per frame.
func NewMockTransmitter(shape wire.Shape, interval time.Duration, step float64) *MockTransmitter {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	m := &MockTransmitter{
		shape:    shape,
		interval: interval,
		step:     step,
		r:        r,
		w:        w,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go m.transmit(ctx)
	return m
}

// MockOpener returns an Opener that ignores the path and starts a fresh
// MockTransmitter per open.
func MockOpener(shape wire.Shape, interval time.Duration, step float64) Opener {
	return func(string, PortOptions) (Port, error) {
		return NewMockTransmitter(shape, interval, step), nil
	}
}

func (m *MockTransmitter) transmit(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := m.w.Write(m.Frame(n)); err != nil {
			return
		}
	}
}

// Frame returns the n-th frame the transmitter sends. The magnetometer
// vector points so that frame n reads as heading n*step.
func (m *MockTransmitter) Frame(n int) []byte {
	heading := math.Mod(float64(n)*m.step, 360)
	// Invert HeadingDegrees: heading = atan2(y, x) + 180.
	rad := (heading - 180) * math.Pi / 180
	x := int16(math.Round(1000 * math.Cos(rad)))
	y := int16(math.Round(1000 * math.Sin(rad)))

	if m.shape == wire.ShapeIMU {
		return wire.EncodeIMU(wire.IMU{
			MagX:  x,
			MagY:  y,
			GyroZ: float32(m.step / m.interval.Seconds()),
			Temp:  21,
		})
	}
	return wire.EncodeMagnetometer(wire.Magnetometer{X: x, Y: y, Command: "mock"})
}

// Read returns transmitted frame bytes.
func (m *MockTransmitter) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if errors.Is(err, io.ErrClosedPipe) {
		err = ErrPortClosed
	}
	return n, err
}

// Write records commands sent to the transmitter.
func (m *MockTransmitter) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.Write(p)
}

// Close stops transmission and fails pending reads.
func (m *MockTransmitter) Close() error {
	m.cancel()
	m.r.CloseWithError(ErrPortClosed)
	<-m.done
	m.w.Close()
	return nil
}
