package codec

import (
	"errors"
	"testing"
)

// FuzzDecode ensures Decode never panics or reads past the buffer and that
// the only error is ErrBufferTooShort.
func FuzzDecode(f *testing.F) {
	f.Add(berlinFrame())
	for _, c := range []CodecID{Codec8, Codec8E} {
		if wire, err := Encode(samplePacket(c, 2)); err == nil {
			f.Add(wire)
			unknown := append([]byte(nil), wire...)
			unknown[8] = 0x42
			f.Add(unknown)
		}
	}
	f.Add([]byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF, 0x8E, 0xFF, 0xFF})
	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := Decode(data)
		if err != nil {
			if !errors.Is(err, ErrBufferTooShort) || len(data) >= minFrameSize {
				t.Fatalf("unexpected error for %d bytes: %v", len(data), err)
			}
			return
		}
		if len(p.Records) > int(p.DeclaredRecords) {
			t.Fatalf("decoded %d records, declared %d", len(p.Records), p.DeclaredRecords)
		}
		for _, w := range p.Warnings {
			if w.Offset < 0 || w.Offset > len(data) {
				t.Fatalf("warning offset %d outside buffer of %d", w.Offset, len(data))
			}
		}
	})
}
