package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avl-svr/internal/codec"
	"avl-svr/internal/codec/fmxxx"
	"avl-svr/internal/pipeline"
	"avl-svr/internal/utilities"
)

type recordingSink struct {
	name    string
	err     error
	batches []*pipeline.Batch
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, b *pipeline.Batch) error {
	s.batches = append(s.batches, b)
	return s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func frame(t *testing.T) []byte {
	t.Helper()
	el := fmxxx.Lookup(fmxxx.Ignition)
	wire, err := codec.Encode(&codec.AvlPacket{Codec: codec.Codec8, Records: []codec.AVLRecord{{
		Timestamp: 1700000000000,
		GPS:       codec.GPSFix{Latitude: 52.52, Longitude: 13.405, Satellites: 7, SpeedKmh: 42},
		TotalIO:   1,
		IO: map[string]codec.IOReading{
			el.Name: {ID: el.ID, Name: el.Name, Description: el.Description, Value: codec.IOValue{Width: 1, Uint: 1}},
		},
	}}})
	require.NoError(t, err)
	return wire
}

func TestProcessIncoming_FansOut(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "failing", err: errors.New("down")}
	dir := t.TempDir()
	d := New(discard(), WithSink(failing), WithSink(ok), WithRawLog(utilities.NewRawLog(dir)))
	d.now = func() time.Time { return time.Date(2023, 11, 14, 22, 13, 30, 0, time.UTC) }

	meta := pipeline.Meta{IMEI: "356307042441013", Source: "tcp"}
	b, err := d.ProcessIncoming(context.Background(), meta, frame(t))
	require.NoError(t, err)
	require.Len(t, b.Tracks, 1)
	assert.Equal(t, uint64(1), b.Tracks[0].PermIO["ignition"])
	assert.Equal(t, 1, b.Tracks[0].MsgType)

	// a failing sink does not stop the others
	require.Len(t, failing.batches, 1)
	require.Len(t, ok.batches, 1)
	assert.Same(t, b, ok.batches[0])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "356307042441013 00000000")
}

func TestProcessIncoming_TooShort(t *testing.T) {
	s := &recordingSink{name: "s"}
	d := New(discard(), WithSink(s))
	b, err := d.ProcessIncoming(context.Background(), pipeline.Meta{IMEI: "1"}, []byte{0, 0, 0})
	assert.ErrorIs(t, err, codec.ErrBufferTooShort)
	assert.Nil(t, b)
	assert.Empty(t, s.batches)
}

func TestProcessIncoming_WarningsStillPublished(t *testing.T) {
	s := &recordingSink{name: "s"}
	d := New(discard(), WithSink(s))
	wire := frame(t)
	b, err := d.ProcessIncoming(context.Background(), pipeline.Meta{IMEI: "1"}, wire[:20])
	require.NoError(t, err)
	assert.Empty(t, b.Tracks)
	assert.True(t, b.Packet.HasWarning(codec.WarnTruncated))
	assert.Len(t, s.batches, 1)
}
