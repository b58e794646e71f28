// Package wire decodes the records the sensor firmware transmits.
//
// The firmware serializes each record with a compact, schema-less encoding
// and then COBS-frames it. Fields appear in declaration order with no tags:
//
//   - i8 / u8: one raw byte
//   - wider integers: LEB128 varint (signed values zigzag-mapped first)
//   - f32: four bytes, little endian
//   - strings: varint byte length followed by UTF-8 bytes
//
// Decoding is strict about length. A payload with bytes left over after the
// last field is rejected, which is what keeps one record shape from being
// silently accepted as another.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrUnexpectedEnd is returned when a field runs past the end of the payload.
	ErrUnexpectedEnd = errors.New("wire: unexpected end of payload")
	// ErrTrailingBytes is returned when bytes remain after the last field.
	ErrTrailingBytes = errors.New("wire: trailing bytes after record")
	// ErrVarintOverflow is returned when a varint does not fit the field width.
	ErrVarintOverflow = errors.New("wire: varint overflows field")
	// ErrInvalidUTF8 is returned for string fields that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("wire: string is not valid UTF-8")
)

// Maximum encoded widths of varints for each integer width.
const (
	maxVarint16 = 3
	maxVarint32 = 5
	maxVarint64 = 10
)

// Decoder reads fields sequentially from a decoded (unstuffed) payload.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a Decoder reading from payload.
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

// Remaining reports the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Finish returns ErrTrailingBytes if any input is left unread.
func (d *Decoder) Finish() error {
	if n := d.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d byte(s)", ErrTrailingBytes, n)
	}
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d byte(s) at offset %d, have %d", ErrUnexpectedEnd, n, d.off, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// varint reads an unsigned LEB128 value of at most maxBytes bytes whose
// value must not exceed limit.
func (d *Decoder) varint(maxBytes int, limit uint64) (uint64, error) {
	var v uint64
	for i := 0; i < maxBytes; i++ {
		b, err := d.take(1)
		if err != nil {
			return 0, err
		}
		v |= uint64(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			if v > limit {
				return 0, fmt.Errorf("%w: %d > %d", ErrVarintOverflow, v, limit)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: more than %d byte(s)", ErrVarintOverflow, maxBytes)
}

// Uint8 reads one raw byte.
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 reads one raw byte as a two's complement value.
func (d *Decoder) Int8() (int8, error) {
	v, err := d.Uint8()
	return int8(v), err
}

// Uint16 reads a varint-encoded u16.
func (d *Decoder) Uint16() (uint16, error) {
	v, err := d.varint(maxVarint16, math.MaxUint16)
	return uint16(v), err
}

// Int16 reads a zigzag varint-encoded i16.
func (d *Decoder) Int16() (int16, error) {
	u, err := d.Uint16()
	if err != nil {
		return 0, err
	}
	return int16(u>>1) ^ -int16(u&1), nil
}

// Uint32 reads a varint-encoded u32.
func (d *Decoder) Uint32() (uint32, error) {
	v, err := d.varint(maxVarint32, math.MaxUint32)
	return uint32(v), err
}

// Float32 reads a little-endian IEEE 754 single.
func (d *Decoder) Float32() (float32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// Text reads a length-prefixed UTF-8 string.
func (d *Decoder) Text() (string, error) {
	n, err := d.varint(maxVarint64, math.MaxInt32)
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// Encoder appends fields in the same layout Decoder reads.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) varint(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *Encoder) Uint8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) Int8(v int8)     { e.buf = append(e.buf, byte(v)) }
func (e *Encoder) Uint16(v uint16) { e.varint(uint64(v)) }
func (e *Encoder) Uint32(v uint32) { e.varint(uint64(v)) }

func (e *Encoder) Int16(v int16) {
	e.varint(uint64(uint16(v<<1) ^ uint16(v>>15)))
}

func (e *Encoder) Float32(v float32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *Encoder) Text(s string) {
	e.varint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}
