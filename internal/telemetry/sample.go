// Package telemetry turns the transceiver's byte stream into smoothed heading
// samples and hands them to a single consumer.
//
// A Pipeline runs on its own goroutine and owns the frame buffer and the
// per-axis filters. The consumer (a Display) only ever sees Samples, taken
// from a Channel with a non-blocking poll.
package telemetry

import (
	"fmt"
	"time"

	"github.com/banshee-data/heading.report/internal/wire"
)

// Record is a decoded frame of any wire shape.
type Record interface {
	Axes() wire.Axes
}

// Status is the transport connection state shown to the operator.
type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Sample is one published telemetry value.
//
// Measured samples come from a decoded frame. Status samples (Measured
// false) report a connection change and repeat the last measured heading.
type Sample struct {
	Time     time.Time `json:"time"`
	Status   Status    `json:"status"`
	Measured bool      `json:"measured"`

	// Heading is in [0, 360).
	Heading float64 `json:"heading_degrees"`

	// AngularRates is nil for record shapes without a gyroscope.
	AngularRates *[3]float64 `json:"smoothed_angular_rates,omitempty"`
	Temperature  *int8       `json:"temperature,omitempty"`
	Command      string      `json:"command,omitempty"`

	// Err describes why the link went down on Disconnected status samples.
	Err string `json:"error,omitempty"`
}
