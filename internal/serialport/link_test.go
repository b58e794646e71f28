package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/timeutil"
)

func TestLinkBackoff(t *testing.T) {
	l := NewLink(LinkConfig{Target: Target{Path: "/dev/null"}, Reconnect: time.Second, ReconnectMax: 3 * time.Second})
	assert.Equal(t, time.Second, l.Backoff(0))
	assert.Equal(t, time.Second, l.Backoff(1))
	assert.Equal(t, 2*time.Second, l.Backoff(2))
	assert.Equal(t, 3*time.Second, l.Backoff(3))
	assert.Equal(t, 3*time.Second, l.Backoff(50))
}

func TestLinkDefaults(t *testing.T) {
	l := NewLink(LinkConfig{Reconnect: 5 * time.Second, ReconnectMax: time.Second})
	assert.Equal(t, 5*time.Second, l.Backoff(10))
	assert.Equal(t, "usb 2341:0043", l.State().Target)
}

type openerStub struct {
	mu    sync.Mutex
	calls int
	errs  []error
	ports []*TestableSerialPort
}

func (o *openerStub) open(path string, _ PortOptions) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.calls
	o.calls++
	if i < len(o.errs) && o.errs[i] != nil {
		return nil, o.errs[i]
	}
	return o.ports[i], nil
}

func waitForTimer(t *testing.T, clock *timeutil.MockClock) {
	t.Helper()
	require.Eventually(t, func() bool { return clock.PendingTimers() > 0 }, 2*time.Second, time.Millisecond)
}

func TestLinkRetriesAfterOpenFailure(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	port := NewTestableSerialPort()
	stub := &openerStub{
		errs:  []error{errors.New("no such device"), nil},
		ports: []*TestableSerialPort{nil, port},
	}
	stop := errors.New("stop")

	var reported []error
	l := NewLink(LinkConfig{
		Target: Target{Path: "/dev/ttyACM0"},
		Open:   stub.open,
		Clock:  clock,
		OnError: func(_ context.Context, err error) error {
			reported = append(reported, err)
			return nil
		},
	})

	done := make(chan error, 1)
	go func() {
		done <- l.Run(context.Background(), func(context.Context, io.Reader) error { return stop })
	}()

	waitForTimer(t, clock)
	state := l.State()
	assert.False(t, state.Connected)
	assert.Contains(t, state.LastError, "no such device")
	clock.Advance(DefaultReconnect)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
	}

	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrUnavailable)
	assert.True(t, port.IsClosed())
	assert.Equal(t, 2, l.State().Attempts)
	assert.Equal(t, 1, l.State().Opens)
}

func TestLinkReconnectsAfterTransportError(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	first, second := NewTestableSerialPort(), NewTestableSerialPort()
	first.AddReadData([]byte("abc"))
	second.AddReadData([]byte("def"))
	stub := &openerStub{ports: []*TestableSerialPort{first, second}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reads := make(chan string, 2)
	serve := func(ctx context.Context, r io.Reader) error {
		b, err := io.ReadAll(r)
		reads <- string(b)
		if len(reads) == 2 {
			cancel()
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", telemetry.ErrTransport, err)
	}

	l := NewLink(LinkConfig{Target: Target{Path: "/dev/ttyACM0"}, Open: stub.open, Clock: clock})
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, serve) }()

	waitForTimer(t, clock)
	clock.Advance(DefaultReconnect)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
	}
	assert.Equal(t, "abc", <-reads)
	assert.Equal(t, "def", <-reads)
	assert.True(t, first.IsClosed())
	assert.True(t, second.IsClosed())
}

func TestLinkCancelClosesPort(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	stub := &openerStub{ports: []*TestableSerialPort{port}}

	ctx, cancel := context.WithCancel(context.Background())
	l := NewLink(LinkConfig{Target: Target{Path: "/dev/ttyACM0"}, Open: stub.open})

	reading := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(_ context.Context, r io.Reader) error {
			close(reading)
			_, err := r.Read(make([]byte, 8))
			return err
		})
	}()

	<-reading
	assert.True(t, l.State().Connected)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked read was not released")
	}
	assert.True(t, port.IsClosed())
	assert.False(t, l.State().Connected)
}

func TestLinkErrorHandlerStops(t *testing.T) {
	halt := errors.New("consumer gone")
	l := NewLink(LinkConfig{
		Target:  Target{Path: "/dev/ttyACM0"},
		Open:    func(string, PortOptions) (Port, error) { return nil, errors.New("busy") },
		OnError: func(context.Context, error) error { return halt },
	})
	err := l.Run(context.Background(), func(context.Context, io.Reader) error { return nil })
	assert.ErrorIs(t, err, halt)
}

func TestLinkDiscoversPort(t *testing.T) {
	var opened string
	port := NewTestableSerialPort()
	l := NewLink(LinkConfig{
		List: listOf(&enumerator.PortDetails{Name: "/dev/cu.usbmodem1", IsUSB: true, VID: "2341", PID: "0043"}),
		Open: func(path string, _ PortOptions) (Port, error) {
			opened = path
			return port, nil
		},
	})
	stop := errors.New("stop")
	err := l.Run(context.Background(), func(context.Context, io.Reader) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "/dev/cu.usbmodem1", opened)
	assert.Equal(t, "/dev/cu.usbmodem1", l.State().Path)
}
