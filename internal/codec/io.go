package codec

import (
	"encoding/hex"
	"strconv"

	"avl-svr/internal/codec/fmxxx"
)

// fixedGroups is the order of the fixed-width IO groups in every record.
var fixedGroups = [...]int{1, 2, 4, 8}

// decodeIO reads the IO groups of one record: N1, N2, N4, N8 and, for
// Codec 8E, NX. Each group starts with a 1-byte element count. On a short
// buffer it returns what was decoded so far, the bytes consumed and
// ErrTruncated.
func decodeIO(r *reader, c CodecID) (map[string]IOReading, int, error) {
	start := r.pos
	out := make(map[string]IOReading)

	for _, width := range fixedGroups {
		if err := decodeGroup(r, c, width, out); err != nil {
			return out, r.pos - start, err
		}
	}
	if c.HasVariableGroup() {
		if err := decodeGroup(r, c, 0, out); err != nil {
			return out, r.pos - start, err
		}
	}
	return out, r.pos - start, nil
}

// decodeGroup reads one count-prefixed group. width 0 is the variable-length
// group where each value carries its own 2-byte length.
func decodeGroup(r *reader, c CodecID, width int, out map[string]IOReading) error {
	n, err := r.u8("io group " + groupName(width) + " count")
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		id, err := r.id(c, "io id")
		if err != nil {
			return err
		}
		var v IOValue
		if width == 0 {
			ln, err := r.u16("io value length")
			if err != nil {
				return err
			}
			b, err := r.safeRead(int(ln), "io value")
			if err != nil {
				return err
			}
			v = IOValue{Hex: hex.EncodeToString(b)}
		} else {
			u, err := r.uintN(width, "io value")
			if err != nil {
				return err
			}
			v = IOValue{Width: width, Uint: u}
		}

		el := fmxxx.Lookup(id)
		// ids are assumed unique per record; a repeated name overwrites.
		out[el.Name] = IOReading{ID: id, Name: el.Name, Description: el.Description, Value: v}
	}
	return nil
}

func groupName(width int) string {
	if width == 0 {
		return "NX"
	}
	return "N" + strconv.Itoa(width)
}
