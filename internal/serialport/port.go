// Package serialport opens and supervises the serial link to the telemetry
// transceiver.
package serialport

import (
	"io"
	"time"
)

// Port is the minimal interface needed for a serial port. Tests and dev
// mode substitute in-memory implementations.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort is implemented by ports whose reads can be bounded.
type TimeoutPort interface {
	Port
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the port at path. Open is the hardware implementation.
type Opener func(path string, opts PortOptions) (Port, error)
