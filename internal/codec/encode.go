package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEncode is returned when a packet cannot be represented on the wire.
var ErrEncode = errors.New("avl: encode")

// Encode builds a frame from p, the inverse of Decode:
//
//	00000000 | dataLength(4) | codec | N | records | N | crc(4)
//
// The record count is len(p.Records); preamble, dataLength and CRC are
// computed (CRC-16/IBM over the data field, stored in 4 bytes).
func Encode(p *AvlPacket) ([]byte, error) {
	if len(p.Records) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d records, max %d", ErrEncode, len(p.Records), math.MaxUint8)
	}
	n := byte(len(p.Records))

	payload := []byte{byte(p.Codec), n}
	for i := range p.Records {
		var err error
		if payload, err = appendRecord(payload, p.Codec, &p.Records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	payload = append(payload, n)

	crc := crc16IBM(payload)
	out := make([]byte, 0, 8+len(payload)+4)
	out = append(out, 0, 0, 0, 0)                                   // preamble
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload))) // data size
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, uint32(crc))
	return out, nil
}

func appendRecord(b []byte, c CodecID, rec *AVLRecord) ([]byte, error) {
	b = binary.BigEndian.AppendUint64(b, rec.Timestamp)
	b = append(b, byte(rec.Priority))
	b = appendGPS(b, rec.GPS)

	var err error
	if b, err = appendID(b, c, rec.EventIOID); err != nil {
		return nil, err
	}
	b = append(b, rec.TotalIO)

	groups := map[int][]IOReading{}
	for _, io := range rec.IO {
		w := io.Value.Width
		switch w {
		case 0:
			if !c.HasVariableGroup() {
				return nil, fmt.Errorf("%w: io %d: variable-length value on %s", ErrEncode, io.ID, c)
			}
		case 1, 2, 4, 8:
			if w < 8 && io.Value.Uint>>(8*w) != 0 {
				return nil, fmt.Errorf("%w: io %d: value %d overflows %d bytes", ErrEncode, io.ID, io.Value.Uint, w)
			}
		default:
			return nil, fmt.Errorf("%w: io %d: width %d", ErrEncode, io.ID, w)
		}
		groups[w] = append(groups[w], io)
	}

	widths := fixedGroups[:]
	if c.HasVariableGroup() {
		widths = append(append([]int{}, widths...), 0)
	}
	for _, w := range widths {
		g := groups[w]
		if len(g) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %d elements in group %s", ErrEncode, len(g), groupName(w))
		}
		sort.Slice(g, func(i, j int) bool { return g[i].ID < g[j].ID })
		b = append(b, byte(len(g)))
		for _, io := range g {
			if b, err = appendID(b, c, io.ID); err != nil {
				return nil, err
			}
			if w == 0 {
				raw, err := hex.DecodeString(io.Value.Hex)
				if err != nil {
					return nil, fmt.Errorf("%w: io %d: %v", ErrEncode, io.ID, err)
				}
				if len(raw) > math.MaxUint16 {
					return nil, fmt.Errorf("%w: io %d: %d bytes", ErrEncode, io.ID, len(raw))
				}
				b = binary.BigEndian.AppendUint16(b, uint16(len(raw)))
				b = append(b, raw...)
				continue
			}
			b = appendUint(b, w, io.Value.Uint)
		}
	}
	return b, nil
}

func appendGPS(b []byte, g GPSFix) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(int32(math.Round(g.Longitude*coordScale))))
	b = binary.BigEndian.AppendUint32(b, uint32(int32(math.Round(g.Latitude*coordScale))))
	b = binary.BigEndian.AppendUint16(b, uint16(g.Altitude))
	b = binary.BigEndian.AppendUint16(b, g.Angle)
	b = append(b, g.Satellites)
	return binary.BigEndian.AppendUint16(b, g.SpeedKmh)
}

func appendID(b []byte, c CodecID, id uint16) ([]byte, error) {
	if c.IDWidth() == 2 {
		return binary.BigEndian.AppendUint16(b, id), nil
	}
	if id > math.MaxUint8 {
		return nil, fmt.Errorf("%w: id %d does not fit 1 byte on %s", ErrEncode, id, c)
	}
	return append(b, byte(id)), nil
}

func appendUint(b []byte, width int, v uint64) []byte {
	switch width {
	case 1:
		return append(b, byte(v))
	case 2:
		return binary.BigEndian.AppendUint16(b, uint16(v))
	case 4:
		return binary.BigEndian.AppendUint32(b, uint32(v))
	default:
		return binary.BigEndian.AppendUint64(b, v)
	}
}

// crc16IBM is CRC-16/IBM (poly 0xA001 reflected, init 0) as Teltonika
// devices compute it over the data field.
func crc16IBM(b []byte) uint16 {
	var crc uint16
	for _, v := range b {
		crc ^= uint16(v)
		for i := 0; i < 8; i++ {
			if (crc & 1) == 1 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
