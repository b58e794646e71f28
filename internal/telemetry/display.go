package telemetry

import (
	"fmt"
	"sync"

	"github.com/banshee-data/heading.report/internal/compass"
)

// Display is the consumer side of a Channel. Update is called from the
// presentation loop; the accessors may be read from any goroutine.
type Display struct {
	ch *Channel

	mu       sync.RWMutex
	last     Sample
	seen     bool
	heading  float64
	measured bool
}

// NewDisplay returns a Display reading from ch, starting Disconnected with
// no heading.
func NewDisplay(ch *Channel) *Display {
	return &Display{ch: ch}
}

// Update drains every sample that is ready right now, oldest first, and
// passes each to visit if it is non-nil. It never blocks and returns the
// number of samples taken.
func (d *Display) Update(visit func(Sample)) int {
	n := 0
	for {
		s, ok := d.ch.TryReceive()
		if !ok {
			return n
		}
		n++

		d.mu.Lock()
		d.last = s
		d.seen = true
		if s.Measured {
			d.heading = s.Heading
			d.measured = true
		}
		d.mu.Unlock()

		if visit != nil {
			visit(s)
		}
	}
}

// Close stops the producer feeding this Display.
func (d *Display) Close() { d.ch.Close() }

// Heading returns the most recent measured heading.
func (d *Display) Heading() (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.heading, d.measured
}

// Status returns the connection status of the latest sample.
func (d *Display) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last.Status
}

// Last returns the latest sample of any kind.
func (d *Display) Last() (Sample, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.seen
}

// String renders the operator line, e.g. "270  connected".
func (d *Display) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	heading := "---"
	if d.measured {
		heading = compass.Format(d.heading)
	}
	return fmt.Sprintf("%s  %s", heading, d.last.Status)
}
