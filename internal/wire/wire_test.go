package wire

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heading.report/internal/cobs"
)

func TestInt16Zigzag(t *testing.T) {
	tests := []struct {
		v    int16
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x01}},
		{1, []byte{0x02}},
		{-64, []byte{0x7F}},
		{64, []byte{0x80, 0x01}},
		{100, []byte{0xC8, 0x01}},
		{math.MaxInt16, []byte{0xFE, 0xFF, 0x03}},
		{math.MinInt16, []byte{0xFF, 0xFF, 0x03}},
	}
	for _, tt := range tests {
		var e Encoder
		e.Int16(tt.v)
		assert.Equal(t, tt.want, e.Bytes(), "encode %d", tt.v)

		got, err := NewDecoder(tt.want).Int16()
		require.NoError(t, err)
		assert.Equal(t, tt.v, got)
	}
}

func TestVarintOverflow(t *testing.T) {
	_, err := NewDecoder([]byte{0xFF, 0xFF, 0x7F}).Uint16()
	assert.ErrorIs(t, err, ErrVarintOverflow)

	_, err = NewDecoder([]byte{0x80, 0x80, 0x80, 0x01}).Uint16()
	assert.ErrorIs(t, err, ErrVarintOverflow)

	_, err = NewDecoder([]byte{0x80}).Uint16()
	assert.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestMagnetometerFrameBytes(t *testing.T) {
	m := Magnetometer{X: 100, Y: 0, Command: "hi"}
	want := []byte{0x03, 0xC8, 0x01, 0x04, 0x02, 'h', 'i', cobs.Delimiter}
	assert.Equal(t, want, EncodeMagnetometer(m))

	got, err := DecodeMagnetometer(want)
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("DecodeMagnetometer mismatch (-want +got):\n%s", diff)
	}
}

func TestIMURoundTrip(t *testing.T) {
	r := IMU{MagX: -321, MagY: 4000, GyroX: 0.5, GyroY: -1.25, GyroZ: 3e-3, Temp: -12}
	frame := EncodeIMU(r)

	got, err := DecodeIMU(frame)
	require.NoError(t, err)
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("DecodeIMU mismatch (-want +got):\n%s", diff)
	}

	axes := got.Axes()
	assert.True(t, axes.HasGyro)
	assert.True(t, axes.HasTemperature)
	assert.Equal(t, -321.0, axes.MagX)
	assert.InDelta(t, -1.25, axes.Gyro[1], 1e-9)
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	frame := EncodeMagnetometer(Magnetometer{X: 1, Y: 2, Command: "hi"})
	_, err := DecodeIMU(frame)
	assert.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	payload := append(Magnetometer{X: 1, Y: 2, Command: "ok"}.MarshalPayload(), 0x55)
	_, err := DecodeMagnetometer(cobs.Encode(payload))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDecodeRejectsBadText(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"length past end", []byte{0x02, 0x04, 0x05, 'a'}, ErrUnexpectedEnd},
		{"invalid utf8", []byte{0x02, 0x04, 0x02, 0xC3, 0x28}, ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMagnetometer(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("UnmarshalMagnetometer(%x) error = %v, want %v", tt.payload, err, tt.want)
			}
		})
	}
}

func TestDecodeRejectsBadStuffing(t *testing.T) {
	_, err := DecodeMagnetometer([]byte{0x09, 0xC8, 0x01, cobs.Delimiter})
	assert.ErrorIs(t, err, cobs.ErrTruncated)
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("imu")
	require.NoError(t, err)
	assert.Equal(t, ShapeIMU, s)

	_, err = ParseShape("quaternion")
	assert.Error(t, err)
}
