package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gpsBytes(lon, lat int32, alt int16, angle uint16, sats uint8, speed uint16) []byte {
	var b []byte
	b = binary.BigEndian.AppendUint32(b, uint32(lon))
	b = binary.BigEndian.AppendUint32(b, uint32(lat))
	b = binary.BigEndian.AppendUint16(b, uint16(alt))
	b = binary.BigEndian.AppendUint16(b, angle)
	b = append(b, sats)
	return binary.BigEndian.AppendUint16(b, speed)
}

func TestDecodeGPS_Validity(t *testing.T) {
	tests := []struct {
		name      string
		lon, lat  int32
		sats      uint8
		wantValid bool
	}{
		{"fix", 134050000, 525200000, 7, true},
		{"no satellites", 134050000, 525200000, 0, false},
		{"zero latitude", 134050000, 0, 7, false},
		{"zero longitude", 0, 525200000, 7, false},
		{"southern hemisphere", -583815591, -346037232, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &reader{buf: gpsBytes(tt.lon, tt.lat, -5, 90, tt.sats, 0)}
			fix, err := decodeGPS(r)
			require.NoError(t, err)
			assert.Equal(t, 15, r.pos)
			assert.Equal(t, tt.wantValid, fix.Valid)
			assert.Equal(t, fix.Satellites > 0 && fix.Latitude != 0 && fix.Longitude != 0, fix.Valid)
			assert.Equal(t, int16(-5), fix.Altitude)
			assert.InDelta(t, float64(tt.lat)/1e7, fix.Latitude, 1e-9)
		})
	}
}

func TestDecodeGPS_Short(t *testing.T) {
	r := &reader{buf: make([]byte, 14)}
	_, err := decodeGPS(r)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 0, r.pos)
}

func TestDecodeIO_Codec8E(t *testing.T) {
	b := []byte{
		1, 0x00, 0xEF, 0x01, // N1: ignition=1
		1, 0x00, 0x42, 0x32, 0x32, // N2: external voltage=12850
		0,                         // N4
		0,                         // N8
		2,                         // NX
		0x27, 0x0F, 0x00, 0x03, 0xDE, 0xAD, 0xBE, // 9999 -> "deadbe"
		0x00, 0x0B, 0x00, 0x00, // iButton, empty
	}
	r := &reader{buf: b}
	io, n, err := decodeIO(r, Codec8E)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)

	assert.Equal(t, IOValue{Width: 1, Uint: 1}, io["ignition"].Value)
	assert.Equal(t, IOValue{Width: 2, Uint: 12850}, io["external_voltage"].Value)

	unk := io["io_9999"]
	assert.Equal(t, uint16(9999), unk.ID)
	assert.Equal(t, "Unknown IO Element 9999", unk.Description)
	assert.True(t, unk.Value.IsBytes())
	assert.Equal(t, "deadbe", unk.Value.Hex)

	assert.Equal(t, IOValue{}, io["ibutton_id"].Value)
}

func TestDecodeIO_DuplicateIDLastWins(t *testing.T) {
	b := []byte{2, 239, 0, 239, 1, 0, 0, 0}
	io, _, err := decodeIO(&reader{buf: b}, Codec8)
	require.NoError(t, err)
	assert.Len(t, io, 1)
	assert.Equal(t, uint64(1), io["ignition"].Value.Uint)
}

func TestDecodeIO_Truncated(t *testing.T) {
	// N1 complete, N2 declares 2 elements but only one is present
	b := []byte{1, 239, 1, 2, 66, 0x32, 0x32, 67}
	io, n, err := decodeIO(&reader{buf: b}, Codec8)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Len(t, io, 2)
	assert.Contains(t, io, "ignition")
	assert.Contains(t, io, "external_voltage")
	assert.Equal(t, len(b), n)
}

func TestDecodeIO_MissingGroupCount(t *testing.T) {
	b := []byte{0, 0, 0} // N8 count absent
	_, n, err := decodeIO(&reader{buf: b}, Codec8)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 3, n)

	// Codec 8E also needs the NX count
	_, _, err = decodeIO(&reader{buf: []byte{0, 0, 0, 0}}, Codec8E)
	assert.ErrorIs(t, err, ErrTruncated)
	_, _, err = decodeIO(&reader{buf: []byte{0, 0, 0, 0}}, Codec8)
	assert.NoError(t, err)
}

func TestDecodeIO_VariableLengthPastEnd(t *testing.T) {
	b := []byte{0, 0, 0, 0, 1, 0x00, 0x01, 0xFF, 0xFF, 0xAA}
	r := &reader{buf: b}
	_, _, err := decodeIO(r, Codec8E)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.LessOrEqual(t, r.pos, len(b))
}

func TestIOValue_JSON(t *testing.T) {
	b, err := IOValue{Width: 8, Uint: ^uint64(0)}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", string(b))

	b, err = IOValue{Hex: "00ff"}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"00ff"`, string(b))
}
