package telemetry

import (
	"context"
	"errors"
	"sync"
)

// ErrConsumerClosed is returned to the producer once the consumer has closed
// its end of the Channel.
var ErrConsumerClosed = errors.New("telemetry: consumer closed")

// DefaultChannelSize is the buffer used when NewChannel is given no size.
const DefaultChannelSize = 64

// Channel is a FIFO hand-off from one producer to one consumer.
//
// The producer blocks in Publish when the buffer is full, so samples are
// never dropped or reordered. The consumer never blocks: it polls with
// TryReceive and signals shutdown with Close.
type Channel struct {
	samples chan Sample
	done    chan struct{}
	once    sync.Once
}

// NewChannel returns a Channel buffering up to size samples.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultChannelSize
	}
	return &Channel{
		samples: make(chan Sample, size),
		done:    make(chan struct{}),
	}
}

// Publish enqueues s, waiting for room if necessary. It fails with
// ErrConsumerClosed after Close and with ctx.Err() on cancellation.
func (c *Channel) Publish(ctx context.Context, s Sample) error {
	select {
	case <-c.done:
		return ErrConsumerClosed
	default:
	}

	select {
	case c.samples <- s:
		return nil
	case <-c.done:
		return ErrConsumerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryReceive returns the oldest pending sample, or false if none is ready.
func (c *Channel) TryReceive() (Sample, bool) {
	select {
	case s := <-c.samples:
		return s, true
	default:
		return Sample{}, false
	}
}

// Close is called by the consumer to stop the producer. It is idempotent.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the consumer has called Close.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Len reports the number of samples waiting.
func (c *Channel) Len() int { return len(c.samples) }
