package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/heading.report/internal/monitoring"
	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/timeutil"
)

// Reconnect defaults.
const (
	DefaultReconnect    = time.Second
	DefaultReconnectMax = 30 * time.Second
)

// Target identifies the transceiver: an explicit device path, or, when Path
// is empty, the first USB serial port with the given ids.
type Target struct {
	Path string
	VID  uint16
	PID  uint16
}

func (t Target) String() string {
	if t.Path != "" {
		return t.Path
	}
	return fmt.Sprintf("usb %04x:%04x", t.VID, t.PID)
}

// LinkConfig configures a Link. Zero values take defaults.
type LinkConfig struct {
	Target  Target
	Options PortOptions

	Reconnect    time.Duration
	ReconnectMax time.Duration

	// Open defaults to Open, List to the USB enumerator.
	Open  Opener
	List  Lister
	Clock timeutil.Clock

	// OnError is told about every failed open and every failed session. A
	// non-nil return stops the link with that error.
	OnError func(ctx context.Context, err error) error
}

// ServeFunc consumes an open port until it fails. Returning an error that
// wraps telemetry.ErrTransport, or nil, makes the link reconnect; any other
// error stops it.
type ServeFunc func(ctx context.Context, r io.Reader) error

// LinkState is a snapshot of the link for the admin API.
type LinkState struct {
	Target    string    `json:"target"`
	Path      string    `json:"path,omitempty"`
	Connected bool      `json:"connected"`
	Attempts  int       `json:"attempts"`
	Opens     int       `json:"opens"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}

// Link keeps a serial session alive, reopening the port with linear backoff.
type Link struct {
	cfg LinkConfig

	mu    sync.Mutex
	state LinkState
}

// NewLink returns a Link for cfg.
func NewLink(cfg LinkConfig) *Link {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = DefaultReconnect
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = DefaultReconnectMax
	}
	if cfg.ReconnectMax < cfg.Reconnect {
		cfg.ReconnectMax = cfg.Reconnect
	}
	if cfg.Open == nil {
		cfg.Open = Open
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Target.Path == "" && cfg.Target.VID == 0 && cfg.Target.PID == 0 {
		cfg.Target.VID, cfg.Target.PID = DefaultVID, DefaultPID
	}
	l := &Link{cfg: cfg}
	l.state.Target = cfg.Target.String()
	l.state.Since = cfg.Clock.Now()
	return l
}

// State returns the current link state. Safe for concurrent use.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Backoff returns the wait before retry number attempt (1-based).
func (l *Link) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := l.cfg.Reconnect * time.Duration(attempt)
	if d > l.cfg.ReconnectMax || d < 0 {
		d = l.cfg.ReconnectMax
	}
	return d
}

// Run opens the port and passes it to serve until ctx is cancelled or serve
// returns a non-transport error. The port is closed when serve returns or
// when ctx ends, which unblocks a pending Read.
func (l *Link) Run(ctx context.Context, serve ServeFunc) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		opened, err := l.session(ctx, serve)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, telemetry.ErrTransport) && !errors.Is(err, ErrUnavailable) {
			return err
		}
		if opened {
			attempt = 0
		}
		attempt++

		reason := "session ended"
		if err != nil {
			reason = err.Error()
			l.fail(err)
			if l.cfg.OnError != nil {
				if herr := l.cfg.OnError(ctx, err); herr != nil {
					return herr
				}
			}
		}

		wait := l.Backoff(attempt)
		monitoring.Logf("serial link %s: %s; retrying in %s", l.cfg.Target, reason, wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// ErrUnavailable wraps failures to locate or open the port.
var ErrUnavailable = errors.New("serial link unavailable")

// session reports whether the port was opened, and why it is no longer in
// use.
func (l *Link) session(ctx context.Context, serve ServeFunc) (bool, error) {
	l.mu.Lock()
	l.state.Attempts++
	l.mu.Unlock()

	path := l.cfg.Target.Path
	if path == "" {
		found, err := FindPort(l.cfg.List, l.cfg.Target.VID, l.cfg.Target.PID)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		path = found
	}

	port, err := l.cfg.Open(path, l.cfg.Options)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	l.mu.Lock()
	l.state.Connected = true
	l.state.Path = path
	l.state.Opens++
	l.state.LastError = ""
	l.state.Since = l.cfg.Clock.Now()
	l.mu.Unlock()
	monitoring.Logf("serial link: opened %s (%s)", path, l.cfg.Options)

	sessCtx, cancel := context.WithCancel(ctx)
	var closeOnce sync.Once
	closePort := func() {
		closeOnce.Do(func() {
			if err := port.Close(); err != nil {
				monitoring.Debugf("serial link: close %s: %v", path, err)
			}
		})
	}
	go func() {
		<-sessCtx.Done()
		closePort()
	}()

	err = serve(sessCtx, port)
	cancel()
	closePort()

	l.mu.Lock()
	l.state.Connected = false
	l.state.Since = l.cfg.Clock.Now()
	l.mu.Unlock()
	return true, err
}

func (l *Link) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.LastError = err.Error()
}

func (l *Link) sleep(ctx context.Context, d time.Duration) error {
	t := l.cfg.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
