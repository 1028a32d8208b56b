package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avl-svr/internal/codec"
)

func record(ts time.Time, sats uint8, io map[string]codec.IOReading) codec.AVLRecord {
	return codec.AVLRecord{
		Timestamp: uint64(ts.UnixMilli()),
		Datetime:  ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		GPS: codec.GPSFix{
			Latitude: 52.52, Longitude: 13.405, Altitude: 34,
			Angle: 180, Satellites: sats, SpeedKmh: 42, Valid: sats > 0,
		},
		EventIOID: 239,
		IO:        io,
	}
}

func TestCalcFix(t *testing.T) {
	assert.Equal(t, 1, CalcFix(4, 52.52, 13.405))
	assert.Equal(t, 0, CalcFix(3, 52.52, 13.405))
	assert.Equal(t, 0, CalcFix(9, 0, 0))
	assert.Equal(t, 0, CalcFix(9, 91, 13.405))
	assert.Equal(t, 0, CalcFix(9, 52.52, -181))
}

func TestDecideMsgType(t *testing.T) {
	now := time.Date(2025, 11, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, decideMsgType(true, now, now))
	assert.Equal(t, 1, decideMsgType(false, now.Add(-time.Minute), now))
	assert.Equal(t, 0, decideMsgType(false, now.Add(-3*time.Minute), now))
	assert.Equal(t, 1, decideMsgType(false, time.Time{}, now))
}

func TestBuildTracking(t *testing.T) {
	ts := time.Date(2025, 11, 14, 11, 59, 30, 0, time.UTC)
	rec := record(ts, 7, map[string]codec.IOReading{
		"ignition":       {ID: 239, Name: "ignition", Value: codec.IOValue{Width: 1, Uint: 1}},
		"total_odometer": {ID: 16, Name: "total_odometer", Value: codec.IOValue{Width: 4, Uint: 98765}},
		"io_385":         {ID: 385, Name: "io_385", Value: codec.IOValue{Hex: "0a0b"}},
	})

	tr := BuildTracking("356307042441013", &rec, 1)
	assert.Equal(t, "356307042441013", tr.IMEI)
	assert.Equal(t, "2025-11-14T11:59:30.000Z", tr.Datetime)
	assert.Equal(t, 42, tr.Spd)
	assert.Equal(t, 180, tr.Crs)
	assert.Equal(t, 34, tr.Alt)
	assert.Equal(t, 1, tr.Fix)
	assert.Equal(t, map[string]uint64{"ignition": 1, "total_odometer": 98765}, tr.PermIO)
	assert.Equal(t, map[string]string{"io_385": "0a0b"}, tr.RawIO)
}

func TestBuildBatch(t *testing.T) {
	now := time.Date(2025, 11, 14, 12, 0, 0, 0, time.UTC)
	meta := Meta{IMEI: "356307042441013", Source: "tcp"}

	single := &codec.AvlPacket{Records: []codec.AVLRecord{record(now.Add(-10*time.Second), 7, nil)}}
	b := BuildBatch(meta, single, now)
	require.Len(t, b.Tracks, 1)
	assert.Equal(t, 1, b.Tracks[0].MsgType)
	assert.Equal(t, meta, b.Meta)

	multi := &codec.AvlPacket{Records: []codec.AVLRecord{
		record(now.Add(-20*time.Second), 7, nil),
		record(now.Add(-10*time.Second), 2, nil),
	}}
	b = BuildBatch(meta, multi, now)
	require.Len(t, b.Tracks, 2)
	assert.Equal(t, 0, b.Tracks[0].MsgType)
	assert.Equal(t, 0, b.Tracks[1].Fix)
	assert.Same(t, b.Tracks[1], b.Latest())

	empty := BuildBatch(meta, &codec.AvlPacket{}, now)
	assert.Empty(t, empty.Tracks)
	assert.Nil(t, empty.Latest())
}
