// Package bio implements a random-access byte reader over an in-memory
// metadata blob, with the compressed-integer encoding ECMA-335 uses
// throughout the tables and blob heaps.
package bio

import (
	"github.com/pkg/errors"
)

// ErrOutOfRange is returned when a read would cross the end of the
// backing buffer.
var ErrOutOfRange = errors.New("bio: read out of range")

// Reader is a random-access reader over a fixed byte slice. Unlike the
// teacher's block-indirected StreamReader, a Reader here sits over a
// single contiguous view, since stitching PE sections back into a
// contiguous blob is the job of the peimage package, not this one.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential and random-access reads.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current read offset.
func (r *Reader) Position() int { return r.pos }

// SetPosition seeks to an absolute offset within the buffer.
func (r *Reader) SetPosition(pos int) { r.pos = pos }

// Length returns the total number of bytes in the view.
func (r *Reader) Length() int { return len(r.data) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) need(n int) error {
	if r.pos < 0 || n < 0 || r.pos+n > len(r.data) {
		return errors.Wrapf(ErrOutOfRange, "need %d bytes at offset %d, length %d", n, r.pos, len(r.data))
	}
	return nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := uint16(r.data[r.pos]) | uint16(r.data[r.pos+1])<<8
	r.pos += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := uint32(r.data[r.pos]) | uint32(r.data[r.pos+1])<<8 |
		uint32(r.data[r.pos+2])<<16 | uint32(r.data[r.pos+3])<<24
	r.pos += 4
	return v, nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	lo, _ := r.ReadU32()
	hi, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

// ReadBytes reads n raw bytes and advances the position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// PeekByte returns the next byte without advancing the position.
func (r *Reader) PeekByte() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	return r.data[r.pos], nil
}

// Fork returns an independent reader over a sub-view [offset, offset+length)
// of the same backing array.
func (r *Reader) Fork(offset, length int) (*Reader, error) {
	if offset < 0 || length < 0 || offset+length > len(r.data) {
		return nil, errors.Wrapf(ErrOutOfRange, "fork [%d, %d) of length %d", offset, offset+length, len(r.data))
	}
	return &Reader{data: r.data[offset : offset+length]}, nil
}

// ReadCompressedUInt32 decodes a 1-, 2-, or 4-byte compressed unsigned
// integer per ECMA-335 §II.23.2.
//
//   - if the high bit of the first byte is clear, the value is that byte.
//   - if the top two bits are 10, the value is the low 14 bits of the
//     2-byte big-endian-within-itself sequence (first byte's low 6 bits
//     become the high bits).
//   - if the top three bits are 110, the value is the low 29 bits of the
//     4-byte sequence.
func (r *Reader) ReadCompressedUInt32() (uint32, error) {
	b0, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return (uint32(b0&0x3F) << 8) | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		b1, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		b2, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		b3, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return (uint32(b0&0x1F) << 24) | (uint32(b1) << 16) | (uint32(b2) << 8) | uint32(b3), nil
	default:
		return 0, errors.Wrapf(ErrOutOfRange, "malformed compressed uint32 lead byte 0x%02x at offset %d", b0, r.pos-1)
	}
}

// ReadCompressedInt32 decodes a compressed signed integer per ECMA-335
// §II.23.2: decode as an unsigned value of the matching width, then
// rotate the sign bit (stored in bit 0) into the top and sign-extend.
func (r *Reader) ReadCompressedInt32() (int32, error) {
	start := r.pos
	b0, err := r.PeekByte()
	if err != nil {
		return 0, err
	}

	var width int
	switch {
	case b0&0x80 == 0:
		width = 1
	case b0&0xC0 == 0x80:
		width = 2
	case b0&0xE0 == 0xC0:
		width = 4
	default:
		return 0, errors.Wrapf(ErrOutOfRange, "malformed compressed int32 lead byte 0x%02x at offset %d", b0, start)
	}

	u, err := r.ReadCompressedUInt32()
	if err != nil {
		return 0, err
	}

	var bits uint
	switch width {
	case 4:
		bits = 28
	case 2:
		bits = 13
	default:
		bits = 6
	}

	signed := u & 1
	u >>= 1
	if signed != 0 {
		// two's complement sign extension over `bits` magnitude bits
		mask := uint32(1) << bits
		return int32(u | ^(mask - 1)), nil
	}
	return int32(u), nil
}
