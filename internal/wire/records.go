package wire

import (
	"fmt"

	"github.com/banshee-data/heading.report/internal/cobs"
)

// Shape names a record layout. The layout is a deployment-time contract with
// the firmware and is never inferred from frame contents.
type Shape string

const (
	ShapeMagnetometer Shape = "magnetometer"
	ShapeIMU          Shape = "imu"
)

// ParseShape validates a configured shape name.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeMagnetometer, ShapeIMU:
		return Shape(s), nil
	default:
		return "", fmt.Errorf("unknown record shape %q: expected %q or %q", s, ShapeMagnetometer, ShapeIMU)
	}
}

// Axes is the shape-independent view of a decoded record consumed by the
// telemetry pipeline.
type Axes struct {
	MagX, MagY float64

	// Gyro holds angular rates when HasGyro is set.
	Gyro    [3]float64
	HasGyro bool

	Temperature    int8
	HasTemperature bool

	Command string
}

// Magnetometer is the two-axis record: { x: i16, y: i16, command: str }.
type Magnetometer struct {
	X       int16  `json:"x"`
	Y       int16  `json:"y"`
	Command string `json:"command"`
}

// Axes implements telemetry.Record.
func (m Magnetometer) Axes() Axes {
	return Axes{
		MagX:    float64(m.X),
		MagY:    float64(m.Y),
		Command: m.Command,
	}
}

// MarshalPayload encodes m without framing.
func (m Magnetometer) MarshalPayload() []byte {
	var e Encoder
	e.Int16(m.X)
	e.Int16(m.Y)
	e.Text(m.Command)
	return e.Bytes()
}

// UnmarshalMagnetometer decodes an unstuffed payload.
func UnmarshalMagnetometer(payload []byte) (Magnetometer, error) {
	var (
		m   Magnetometer
		err error
	)
	d := NewDecoder(payload)
	if m.X, err = d.Int16(); err != nil {
		return Magnetometer{}, fmt.Errorf("field x: %w", err)
	}
	if m.Y, err = d.Int16(); err != nil {
		return Magnetometer{}, fmt.Errorf("field y: %w", err)
	}
	if m.Command, err = d.Text(); err != nil {
		return Magnetometer{}, fmt.Errorf("field command: %w", err)
	}
	if err := d.Finish(); err != nil {
		return Magnetometer{}, err
	}
	return m, nil
}

// DecodeMagnetometer unstuffs frame in place and decodes it. frame may carry
// its trailing delimiter.
func DecodeMagnetometer(frame []byte) (Magnetometer, error) {
	payload, err := cobs.DecodeInPlace(frame)
	if err != nil {
		return Magnetometer{}, err
	}
	return UnmarshalMagnetometer(payload)
}

// EncodeMagnetometer returns m as a complete, delimited frame.
func EncodeMagnetometer(m Magnetometer) []byte {
	return cobs.Encode(m.MarshalPayload())
}

// IMU is the full record:
// { mag_x: i16, mag_y: i16, gyro_x: f32, gyro_y: f32, gyro_z: f32, temp: i8 }.
type IMU struct {
	MagX  int16   `json:"mag_x"`
	MagY  int16   `json:"mag_y"`
	GyroX float32 `json:"gyro_x"`
	GyroY float32 `json:"gyro_y"`
	GyroZ float32 `json:"gyro_z"`
	Temp  int8    `json:"temp"`
}

// Axes implements telemetry.Record.
func (r IMU) Axes() Axes {
	return Axes{
		MagX:           float64(r.MagX),
		MagY:           float64(r.MagY),
		Gyro:           [3]float64{float64(r.GyroX), float64(r.GyroY), float64(r.GyroZ)},
		HasGyro:        true,
		Temperature:    r.Temp,
		HasTemperature: true,
	}
}

// MarshalPayload encodes r without framing.
func (r IMU) MarshalPayload() []byte {
	var e Encoder
	e.Int16(r.MagX)
	e.Int16(r.MagY)
	e.Float32(r.GyroX)
	e.Float32(r.GyroY)
	e.Float32(r.GyroZ)
	e.Int8(r.Temp)
	return e.Bytes()
}

// UnmarshalIMU decodes an unstuffed payload.
func UnmarshalIMU(payload []byte) (IMU, error) {
	var (
		r   IMU
		err error
	)
	d := NewDecoder(payload)
	if r.MagX, err = d.Int16(); err != nil {
		return IMU{}, fmt.Errorf("field mag_x: %w", err)
	}
	if r.MagY, err = d.Int16(); err != nil {
		return IMU{}, fmt.Errorf("field mag_y: %w", err)
	}
	if r.GyroX, err = d.Float32(); err != nil {
		return IMU{}, fmt.Errorf("field gyro_x: %w", err)
	}
	if r.GyroY, err = d.Float32(); err != nil {
		return IMU{}, fmt.Errorf("field gyro_y: %w", err)
	}
	if r.GyroZ, err = d.Float32(); err != nil {
		return IMU{}, fmt.Errorf("field gyro_z: %w", err)
	}
	if r.Temp, err = d.Int8(); err != nil {
		return IMU{}, fmt.Errorf("field temp: %w", err)
	}
	if err := d.Finish(); err != nil {
		return IMU{}, err
	}
	return r, nil
}

// DecodeIMU unstuffs frame in place and decodes it.
func DecodeIMU(frame []byte) (IMU, error) {
	payload, err := cobs.DecodeInPlace(frame)
	if err != nil {
		return IMU{}, err
	}
	return UnmarshalIMU(payload)
}

// EncodeIMU returns r as a complete, delimited frame.
func EncodeIMU(r IMU) []byte {
	return cobs.Encode(r.MarshalPayload())
}
