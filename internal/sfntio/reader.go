// Package sfntio provides a small cursor-based byte reader used by the
// binary decoders in this module (the patch-map format 2 codec, the IFTB
// patch header and payload parsers, and the SFNT table directory parser).
// It tracks how many bytes have been consumed so
// that callers can resume reading immediately after a sub-structure, and it
// turns short reads into ifterrors.NotEnoughInput rather than io.EOF.
package sfntio

import (
	"fmt"

	"github.com/garretrieger/ift/ifterrors"
)

// Reader reads big-endian fields from an in-memory byte slice, advancing an
// internal cursor as it goes.
type Reader struct {
	data []byte
	pos  int
	name string
}

// NewReader wraps data for sequential reading. name identifies the
// structure being decoded (e.g. "patch-map entry", "sparse bit set") and is
// used only to annotate error messages.
func NewReader(name string, data []byte) *Reader {
	return &Reader{data: data, name: name}
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) bytes(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, r.errorf("need %d bytes, have %d", n, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadInt16 reads a big-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint24 reads a big-endian 24-bit unsigned integer.
func (r *Reader) ReadUint24() (uint32, error) {
	b, err := r.bytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadBytes reads n raw bytes. The returned slice aliases the reader's
// input and must not be modified by the caller.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.bytes(n)
}

// Skip advances the cursor by n bytes without returning them.
func (r *Reader) Skip(n int) error {
	_, err := r.bytes(n)
	return err
}

// RemainingBytes returns the unread tail of the input, without consuming
// it. Callers that hand this slice to another decoder (e.g. the sparse bit
// set decoder) should follow up with Skip(n) once they know how many bytes
// that decoder consumed.
func (r *Reader) RemainingBytes() []byte {
	return r.data[r.pos:]
}

func (r *Reader) errorf(format string, a ...any) error {
	ctx := r.name
	if ctx == "" {
		ctx = "input"
	}
	return ifterrors.Wrap(ifterrors.NotEnoughInput, ctx, fmt.Errorf(format, a...))
}
