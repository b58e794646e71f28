// Package cobs implements Consistent Overhead Byte Stuffing framing.
//
// An encoded frame never contains a zero byte except for the trailing
// Delimiter, so a receiver can resynchronise on a lossy link by scanning for
// the next zero.
package cobs

import (
	"bytes"
	"errors"
	"fmt"
)

// Delimiter terminates every encoded frame.
const Delimiter byte = 0x00

var (
	// ErrZeroByte is returned when a zero byte appears where a code byte or
	// stuffed data byte is expected.
	ErrZeroByte = errors.New("cobs: unexpected zero byte")
	// ErrTruncated is returned when a code byte points past the end of the frame.
	ErrTruncated = errors.New("cobs: frame truncated")
)

// Encode stuffs src and appends the frame Delimiter. A full 254-byte block
// only opens a new block when more input follows it.
func Encode(src []byte) []byte {
	out := make([]byte, 1, len(src)+len(src)/254+2)
	codeIdx := 0
	code := byte(1)

	for i, b := range src {
		if b == 0 {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			out[codeIdx] = code
			codeIdx = -1
			if i+1 < len(src) {
				codeIdx = len(out)
				out = append(out, 0)
				code = 1
			}
		}
	}
	if codeIdx >= 0 {
		out[codeIdx] = code
	}

	return append(out, Delimiter)
}

// DecodeInPlace unstuffs frame into its own storage and returns the decoded
// prefix. A single trailing Delimiter is accepted; any other zero byte is an
// error. The decoded form is never longer than the encoded one, so the
// write cursor cannot overtake the read cursor.
func DecodeInPlace(frame []byte) ([]byte, error) {
	frame = body(frame)
	w := 0
	for r := 0; r < len(frame); {
		code := frame[r]
		if code == 0 {
			return nil, ErrZeroByte
		}
		r++

		count := int(code) - 1
		if r+count > len(frame) {
			return nil, fmt.Errorf("%w: code 0x%02x at offset %d needs %d bytes, %d left", ErrTruncated, code, r-1, count, len(frame)-r)
		}

		block := frame[r : r+count]
		if bytes.IndexByte(block, 0) >= 0 {
			return nil, ErrZeroByte
		}
		w += copy(frame[w:], block)
		r += count

		if code != 0xFF && r < len(frame) {
			frame[w] = 0x00
			w++
		}
	}
	return frame[:w], nil
}

// body drops the trailing Delimiter, if present.
func body(frame []byte) []byte {
	if n := len(frame); n > 0 && frame[n-1] == Delimiter {
		return frame[:n-1]
	}
	return frame
}
