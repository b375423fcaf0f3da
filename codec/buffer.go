// Package codec implements a reader/writer for the protobuf binary wire
// format: varints, fixed-width integers, zig-zag encoding, tagged records,
// and length-delimited byte runs. It is deliberately unaware of schema
// metadata; descriptor-driven encoding lives on top of it.
package codec

import (
	"errors"
	"fmt"
	"io"
)

// Wire types, as stored in the low three bits of a record tag.
const (
	WireVarint     = 0
	WireFixed64    = 1
	WireBytes      = 2
	WireStartGroup = 3
	WireEndGroup   = 4
	WireFixed32    = 5
)

// MaxTag is the largest valid field number (2^29 - 1).
const MaxTag = 536870911

// ErrOverflow is returned when a varint does not fit in 64 bits.
var ErrOverflow = errors.New("codec: varint overflows 64 bits")

// ErrBadWireType is returned when a record carries an undefined wire type.
var ErrBadWireType = errors.New("codec: unknown wire type")

// Buffer wraps a byte slice with a read cursor and append-style writes.
// The zero value is an empty buffer ready for encoding.
type Buffer struct {
	buf   []byte
	index int
}

// NewBuffer returns a buffer that reads from (and appends after) b.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Reset drops the buffer's contents and rewinds the read cursor.
func (cb *Buffer) Reset() {
	cb.buf = cb.buf[:0]
	cb.index = 0
}

// Bytes returns the unread remainder of the buffer without copying.
func (cb *Buffer) Bytes() []byte {
	return cb.buf[cb.index:]
}

// Len returns the number of unread bytes.
func (cb *Buffer) Len() int {
	return len(cb.buf) - cb.index
}

// EOF reports whether the read cursor has consumed the whole buffer.
func (cb *Buffer) EOF() bool {
	return cb.index >= len(cb.buf)
}

// Skip advances the read cursor by count bytes.
func (cb *Buffer) Skip(count int) error {
	if count < 0 {
		return fmt.Errorf("codec: bad skip length %d", count)
	}
	next := cb.index + count
	if next < cb.index || next > len(cb.buf) {
		return io.ErrUnexpectedEOF
	}
	cb.index = next
	return nil
}

// DecodeVarint reads a base-128 varint from the buffer.
func (cb *Buffer) DecodeVarint() (uint64, error) {
	i := cb.index
	if i < len(cb.buf) && cb.buf[i] < 0x80 {
		cb.index++
		return uint64(cb.buf[i]), nil
	}
	var x uint64
	for shift := uint(0); shift < 64; shift += 7 {
		if i >= len(cb.buf) {
			return 0, io.ErrUnexpectedEOF
		}
		b := cb.buf[i]
		i++
		x |= uint64(b&0x7F) << shift
		if b < 0x80 {
			cb.index = i
			return x, nil
		}
	}
	return 0, ErrOverflow
}

// DecodeTagAndWireType reads one record tag and splits it into the field
// number and wire type.
func (cb *Buffer) DecodeTagAndWireType() (tag int32, wireType int8, err error) {
	v, err := cb.DecodeVarint()
	if err != nil {
		return 0, 0, err
	}
	wireType = int8(v & 7)
	v >>= 3
	if v == 0 || v > MaxTag {
		return 0, 0, fmt.Errorf("codec: field number %d out of range", v)
	}
	return int32(v), wireType, nil
}

// DecodeFixed64 reads a little-endian 64-bit value.
func (cb *Buffer) DecodeFixed64() (uint64, error) {
	i := cb.index + 8
	if i < 0 || i > len(cb.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	cb.index = i
	b := cb.buf[i-8 : i]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

// DecodeFixed32 reads a little-endian 32-bit value.
func (cb *Buffer) DecodeFixed32() (uint64, error) {
	i := cb.index + 4
	if i < 0 || i > len(cb.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	cb.index = i
	b := cb.buf[i-4 : i]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24, nil
}

// DecodeRawBytes reads a length-delimited byte run. When alloc is false
// the returned slice aliases the buffer's backing array.
func (cb *Buffer) DecodeRawBytes(alloc bool) ([]byte, error) {
	n, err := cb.DecodeVarint()
	if err != nil {
		return nil, err
	}
	count := int(n)
	if count < 0 || uint64(count) != n {
		return nil, fmt.Errorf("codec: bad byte length %d", n)
	}
	end := cb.index + count
	if end < cb.index || end > len(cb.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := cb.buf[cb.index:end]
	cb.index = end
	if alloc {
		b = append([]byte(nil), b...)
	}
	return b, nil
}

// DecodeZigZag32 undoes zig-zag encoding of a signed 32-bit value.
func DecodeZigZag32(v uint64) int32 {
	return int32((uint32(v) >> 1) ^ uint32((int32(v&1)<<31)>>31))
}

// DecodeZigZag64 undoes zig-zag encoding of a signed 64-bit value.
func DecodeZigZag64(v uint64) int64 {
	return int64((v >> 1) ^ uint64((int64(v&1)<<63)>>63))
}

// ReadGroup consumes the input up to and including the matching end-group
// tag and returns the enclosed data (end-group tag excluded). Nested
// groups are handled. When alloc is false the returned slice aliases the
// buffer.
func (cb *Buffer) ReadGroup(alloc bool) ([]byte, error) {
	groupEnd, dataEnd, err := cb.findGroupEnd()
	if err != nil {
		return nil, err
	}
	b := cb.buf[cb.index:dataEnd]
	if alloc {
		b = append([]byte(nil), b...)
	}
	cb.index = groupEnd
	return b, nil
}

// SkipGroup advances the cursor past the matching end-group tag.
func (cb *Buffer) SkipGroup() error {
	groupEnd, _, err := cb.findGroupEnd()
	if err != nil {
		return err
	}
	cb.index = groupEnd
	return nil
}

// SkipField skips the payload of one record with the given wire type.
func (cb *Buffer) SkipField(wireType int8) error {
	switch wireType {
	case WireVarint:
		_, err := cb.DecodeVarint()
		return err
	case WireFixed32:
		return cb.Skip(4)
	case WireFixed64:
		return cb.Skip(8)
	case WireBytes:
		_, err := cb.DecodeRawBytes(false)
		return err
	case WireStartGroup:
		return cb.SkipGroup()
	default:
		return ErrBadWireType
	}
}

// findGroupEnd scans for the end-group tag matching the current position.
// It restores the read cursor before returning; groupEnd is the index just
// past the end-group tag and dataEnd the index of the tag itself.
func (cb *Buffer) findGroupEnd() (groupEnd int, dataEnd int, err error) {
	start := cb.index
	defer func() {
		cb.index = start
	}()
	for {
		fieldStart := cb.index
		_, wireType, err := cb.DecodeTagAndWireType()
		if err != nil {
			return 0, 0, err
		}
		if wireType == WireEndGroup {
			return cb.index, fieldStart, nil
		}
		if err := cb.SkipField(wireType); err != nil {
			return 0, 0, err
		}
	}
}

// EncodeVarint appends a base-128 varint.
func (cb *Buffer) EncodeVarint(x uint64) {
	for x >= 1<<7 {
		cb.buf = append(cb.buf, byte(x&0x7f|0x80))
		x >>= 7
	}
	cb.buf = append(cb.buf, byte(x))
}

// EncodeTagAndWireType appends one record tag.
func (cb *Buffer) EncodeTagAndWireType(tag int32, wireType int8) {
	cb.EncodeVarint(uint64(tag)<<3 | uint64(wireType))
}

// EncodeFixed64 appends a little-endian 64-bit value.
func (cb *Buffer) EncodeFixed64(x uint64) {
	cb.buf = append(cb.buf,
		byte(x), byte(x>>8), byte(x>>16), byte(x>>24),
		byte(x>>32), byte(x>>40), byte(x>>48), byte(x>>56))
}

// EncodeFixed32 appends a little-endian 32-bit value.
func (cb *Buffer) EncodeFixed32(x uint64) {
	cb.buf = append(cb.buf, byte(x), byte(x>>8), byte(x>>16), byte(x>>24))
}

// EncodeZigZag32 zig-zag encodes a signed 32-bit value.
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32(v>>31))
}

// EncodeZigZag64 zig-zag encodes a signed 64-bit value.
func EncodeZigZag64(v int64) uint64 {
	return (uint64(v) << 1) ^ uint64(v>>63)
}

// EncodeRawBytes appends a length-delimited byte run.
func (cb *Buffer) EncodeRawBytes(b []byte) {
	cb.EncodeVarint(uint64(len(b)))
	cb.buf = append(cb.buf, b...)
}

// Write appends raw bytes, implementing io.Writer. It never fails.
func (cb *Buffer) Write(b []byte) (int, error) {
	cb.buf = append(cb.buf, b...)
	return len(b), nil
}

var _ io.Writer = (*Buffer)(nil)
