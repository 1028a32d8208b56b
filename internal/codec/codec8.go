package codec

import (
	"fmt"
)

// minFrameSize covers preamble, data length, codec id and record count.
const minFrameSize = 10

// Decode parses one Teltonika AVL frame:
//
//	preamble(4) | dataLength(4) | codec(1) | N1(1) | records... | N2(1) | crc(4)
//
// Only a buffer shorter than 10 bytes is an error. Every other problem is
// reported as a Warning on a packet carrying whatever decoded before it.
// Reads are bounded by len(data) alone; dataLength is advisory and the CRC
// is captured but never checked.
func Decode(data []byte) (*AvlPacket, error) {
	if len(data) < minFrameSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrBufferTooShort, len(data), minFrameSize)
	}

	r := &reader{buf: data}
	p := &AvlPacket{Records: []AVLRecord{}, Warnings: []Warning{}}

	// header reads cannot fail: len(data) >= 10
	p.Preamble, _ = r.u32("preamble")
	if p.Preamble != 0 {
		p.warn(WarnPreambleNonZero, 0, "preamble is 0x%08x, expected 0x00000000", p.Preamble)
	}

	p.DataLength, _ = r.u32("data length")
	if int64(p.DataLength) > int64(len(data)-8) {
		p.warn(WarnFrameLengthMismatch, 4, "data length %d exceeds %d bytes available", p.DataLength, len(data)-8)
	}

	codecByte, _ := r.u8("codec id")
	p.Codec = CodecID(codecByte)
	p.CodecName = p.Codec.String()
	if !p.Codec.Known() {
		p.warn(WarnUnsupportedCodec, 8, "codec 0x%02x not supported, using generic fixed-width layout", codecByte)
	}

	p.DeclaredRecords, _ = r.u8("record count")

	for i := 0; i < int(p.DeclaredRecords); i++ {
		at := r.pos
		rec, err := decodeRecord(r, p.Codec)
		if err != nil {
			r.pos = at
			p.warn(WarnTruncated, at, "record %d/%d: %v", i+1, p.DeclaredRecords, err)
			break
		}
		p.Records = append(p.Records, rec)
	}

	if r.remaining() >= 1 {
		at := r.pos
		n, _ := r.u8("trailing record count")
		p.TrailingRecords = &n
		if n != p.DeclaredRecords {
			p.warn(WarnRecordCountMismatch, at, "trailing record count %d, header declared %d", n, p.DeclaredRecords)
		}
	}

	if r.remaining() >= 4 {
		crc, _ := r.u32("crc")
		p.CRC = &crc
	}

	return p, nil
}

// decodeRecord reads one AVL record. On error the record is incomplete and
// the cursor position is unspecified; the caller rewinds.
func decodeRecord(r *reader, c CodecID) (AVLRecord, error) {
	var rec AVLRecord

	ts, err := r.u64("timestamp")
	if err != nil {
		return rec, err
	}
	rec.Timestamp = ts
	rec.Datetime = formatTimestamp(ts)

	prio, err := r.u8("priority")
	if err != nil {
		return rec, err
	}
	rec.Priority = Priority(prio)

	if rec.GPS, err = decodeGPS(r); err != nil {
		return rec, err
	}

	if rec.EventIOID, err = r.id(c, "event io id"); err != nil {
		return rec, err
	}
	// informational only, not compared with the decoded element count
	if rec.TotalIO, err = r.u8("total io count"); err != nil {
		return rec, err
	}

	io, _, err := decodeIO(r, c)
	if err != nil {
		return rec, err
	}
	rec.IO = io
	return rec, nil
}
