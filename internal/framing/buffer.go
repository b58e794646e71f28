// Package framing accumulates COBS-delimited frames from an unbounded byte
// stream into a fixed-capacity buffer and decodes each completed frame.
package framing

import (
	"bytes"

	"github.com/banshee-data/heading.report/internal/cobs"
)

// DefaultCapacity is the frame capacity used when none is given.
const DefaultCapacity = 256

// Decoder converts one complete frame, including its trailing delimiter, into
// a record. It may decode in place; the buffer is discarded afterwards.
type Decoder[T any] func(frame []byte) (T, error)

// Outcome tags the result of a single Write.
type Outcome int

const (
	// NeedMore means the window was absorbed as a partial frame.
	NeedMore Outcome = iota
	// Overflow means the partial frame exceeded capacity and was discarded.
	Overflow
	// DecodeError means a complete frame was delimited but did not decode.
	DecodeError
	// Decoded means a complete frame decoded into Result.Record.
	Decoded
)

func (o Outcome) String() string {
	switch o {
	case NeedMore:
		return "need_more"
	case Overflow:
		return "overflow"
	case DecodeError:
		return "decode_error"
	case Decoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single Write. Remaining aliases the caller's
// window and holds bytes that belong to the next frame; the caller must feed
// it back through Write until it is empty.
type Result[T any] struct {
	Outcome   Outcome
	Record    T
	Err       error
	Remaining []byte
}

// FrameBuffer holds at most one partial frame. It is not safe for concurrent
// use; a pipeline owns exactly one.
type FrameBuffer[T any] struct {
	// storage has one spare byte so the delimiter always fits behind a
	// full-capacity frame body.
	storage []byte
	index   int
	decode  Decoder[T]
}

// NewFrameBuffer returns an empty buffer holding frame bodies of up to
// capacity bytes (excluding the delimiter).
func NewFrameBuffer[T any](capacity int, decode Decoder[T]) *FrameBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FrameBuffer[T]{
		storage: make([]byte, capacity+1),
		decode:  decode,
	}
}

// Capacity reports the largest frame body the buffer accepts.
func (b *FrameBuffer[T]) Capacity() int { return len(b.storage) - 1 }

// Len reports the number of buffered bytes of the current partial frame.
func (b *FrameBuffer[T]) Len() int { return b.index }

// Reset discards any partial frame.
func (b *FrameBuffer[T]) Reset() { b.index = 0 }

// Write feeds the next window of stream bytes.
//
// Empty input is a no-op. Without a delimiter the window is appended, or, if
// it does not fit, the partial frame is dropped and the part of the window
// that did not fit is handed back. With a delimiter at offset i the bytes up
// to and including it complete the frame and everything after it is handed
// back untouched. Every terminal outcome leaves the buffer empty.
func (b *FrameBuffer[T]) Write(window []byte) Result[T] {
	if len(window) == 0 {
		return Result[T]{Outcome: NeedMore}
	}

	capacity := b.Capacity()
	i := bytes.IndexByte(window, cobs.Delimiter)

	if i < 0 {
		if b.index+len(window) > capacity {
			start := capacity - b.index
			b.index = 0
			return Result[T]{Outcome: Overflow, Remaining: window[start:]}
		}
		b.append(window)
		return Result[T]{Outcome: NeedMore}
	}

	take, release := window[:i+1], window[i+1:]
	if b.index+i > capacity {
		b.index = 0
		return Result[T]{Outcome: Overflow, Remaining: release}
	}

	b.append(take)
	record, err := b.decode(b.storage[:b.index])
	b.index = 0
	if err != nil {
		return Result[T]{Outcome: DecodeError, Err: err, Remaining: release}
	}
	return Result[T]{Outcome: Decoded, Record: record, Remaining: release}
}

func (b *FrameBuffer[T]) append(p []byte) {
	b.index += copy(b.storage[b.index:], p)
}
