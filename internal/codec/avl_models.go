package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// CodecID is the codec byte of an AVL frame. Any value other than the
// declared constants is an unknown codec and is decoded with the generic
// fixed-width layout.
type CodecID uint8

const (
	Codec8  CodecID = 0x08
	Codec8E CodecID = 0x8E
	Codec16 CodecID = 0x10
)

// Known reports whether c is one of Codec8, Codec8E or Codec16.
func (c CodecID) Known() bool {
	return c == Codec8 || c == Codec8E || c == Codec16
}

// IDWidth is the size in bytes of event and IO element ids.
func (c CodecID) IDWidth() int {
	if c == Codec8E {
		return 2
	}
	return 1
}

// HasVariableGroup reports whether records carry the variable-length IO group.
func (c CodecID) HasVariableGroup() bool { return c == Codec8E }

func (c CodecID) String() string {
	switch c {
	case Codec8:
		return "Codec 8"
	case Codec8E:
		return "Codec 8E"
	case Codec16:
		return "Codec 16"
	default:
		return fmt.Sprintf("Unknown (0x%02x)", uint8(c))
	}
}

type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityHigh
	PriorityPanic
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityPanic:
		return "panic"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

type GPSFix struct {
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
	Altitude   int16   `json:"altitude"`
	Angle      uint16  `json:"angle"`
	Satellites uint8   `json:"satellites"`
	SpeedKmh   uint16  `json:"speed_kmh"`
	Valid      bool    `json:"valid"`
}

// IOValue holds either a fixed-width unsigned integer (Width 1, 2, 4 or 8)
// or, for the Codec 8E variable-length group (Width 0), the raw bytes as a
// lowercase hex string.
type IOValue struct {
	Width int
	Uint  uint64
	Hex   string
}

// IsBytes reports whether the value came from the variable-length group.
func (v IOValue) IsBytes() bool { return v.Width == 0 }

func (v IOValue) String() string {
	if v.IsBytes() {
		return v.Hex
	}
	return strconv.FormatUint(v.Uint, 10)
}

func (v IOValue) MarshalJSON() ([]byte, error) {
	if v.IsBytes() {
		return json.Marshal(v.Hex)
	}
	return strconv.AppendUint(nil, v.Uint, 10), nil
}

type IOReading struct {
	ID          uint16  `json:"id"`
	Name        string  `json:"-"`
	Value       IOValue `json:"value"`
	Description string  `json:"description"`
}

type AVLRecord struct {
	Timestamp uint64               `json:"timestamp"`
	Datetime  string               `json:"datetime"`
	Priority  Priority             `json:"priority"`
	GPS       GPSFix               `json:"gps"`
	EventIOID uint16               `json:"event_io_id"`
	TotalIO   uint8                `json:"total_io_elements"`
	IO        map[string]IOReading `json:"io"`
}

// Time returns the record timestamp in UTC.
func (r AVLRecord) Time() time.Time {
	return time.UnixMilli(int64(r.Timestamp)).UTC()
}

// formatTimestamp renders ms since epoch as ISO-8601 UTC. Values that do not
// fit a four-digit year render as "invalid_<ms>".
func formatTimestamp(ms uint64) string {
	if ms > math.MaxInt64 {
		return "invalid_" + strconv.FormatUint(ms, 10)
	}
	t := time.UnixMilli(int64(ms)).UTC()
	if t.Year() > 9999 {
		return "invalid_" + strconv.FormatUint(ms, 10)
	}
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}

type WarningKind string

const (
	WarnPreambleNonZero     WarningKind = "preamble_nonzero"
	WarnFrameLengthMismatch WarningKind = "frame_length_mismatch"
	WarnUnsupportedCodec    WarningKind = "unsupported_codec"
	WarnRecordCountMismatch WarningKind = "record_count_mismatch"
	WarnTruncated           WarningKind = "truncated"
)

// Warning is a non-fatal problem found while decoding. Offset is the cursor
// position the problem was detected at.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Offset  int         `json:"offset"`
	Message string      `json:"message"`
}

// AvlPacket is the result of decoding one frame. TrailingRecords and CRC are
// nil when the buffer ended before them.
type AvlPacket struct {
	Preamble        uint32      `json:"preamble"`
	DataLength      uint32      `json:"data_length"`
	Codec           CodecID     `json:"codec_id"`
	CodecName       string      `json:"codec_name"`
	DeclaredRecords uint8       `json:"num_records"`
	Records         []AVLRecord `json:"records"`
	TrailingRecords *uint8      `json:"trailing_records,omitempty"`
	CRC             *uint32     `json:"crc,omitempty"`
	Warnings        []Warning   `json:"warnings"`
}

// HasWarning reports whether a warning of kind k was recorded.
func (p *AvlPacket) HasWarning(k WarningKind) bool {
	for _, w := range p.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}

func (p *AvlPacket) warn(kind WarningKind, offset int, format string, args ...any) {
	p.Warnings = append(p.Warnings, Warning{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)})
}
