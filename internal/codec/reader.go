package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrBufferTooShort is the only fatal decode error: no partial result.
	ErrBufferTooShort = errors.New("avl: buffer too short")
	// ErrTruncated is returned when a field needs more bytes than remain.
	ErrTruncated = errors.New("avl: truncated")
)

// reader is a forward-only cursor over an input buffer. Every read is
// checked against len(buf); the cursor never moves past the end.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

// safeRead returns the next n bytes and advances, or fails without moving.
func (r *reader) safeRead(n int, field string) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d (len=%d)", ErrTruncated, field, n, r.pos, len(r.buf))
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8(field string) (uint8, error) {
	b, err := r.safeRead(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(field string) (uint16, error) {
	b, err := r.safeRead(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.safeRead(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u64(field string) (uint64, error) {
	b, err := r.safeRead(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// uintN reads a big-endian unsigned integer of width 1, 2, 4 or 8.
func (r *reader) uintN(width int, field string) (uint64, error) {
	switch width {
	case 1:
		v, err := r.u8(field)
		return uint64(v), err
	case 2:
		v, err := r.u16(field)
		return uint64(v), err
	case 4:
		v, err := r.u32(field)
		return uint64(v), err
	case 8:
		return r.u64(field)
	default:
		return 0, fmt.Errorf("avl: unsupported integer width %d", width)
	}
}

// id reads an event or IO element id sized by the codec.
func (r *reader) id(c CodecID, field string) (uint16, error) {
	if c.IDWidth() == 2 {
		return r.u16(field)
	}
	v, err := r.u8(field)
	return uint16(v), err
}
