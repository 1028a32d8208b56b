package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avl-svr/internal/codec"
)

func TestParseCodec(t *testing.T) {
	for in, want := range map[string]codec.CodecID{"8": codec.Codec8, "8E": codec.Codec8E, "16": codec.Codec16} {
		got, err := parseCodec(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := parseCodec("12")
	assert.Error(t, err)
}

func TestBuildPacket_Decodes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, c := range []codec.CodecID{codec.Codec8, codec.Codec8E, codec.Codec16} {
		p := buildPacket(c, 3, 10, 52.52, 13.405, now)
		wire, err := codec.Encode(p)
		require.NoError(t, err, c.String())

		got, err := codec.Decode(wire)
		require.NoError(t, err)
		assert.Empty(t, got.Warnings, c.String())
		require.Len(t, got.Records, 3)
		last := got.Records[2]
		assert.Equal(t, uint64(now.UnixMilli()), last.Timestamp)
		assert.InDelta(t, 52.5212, last.GPS.Latitude, 1e-7)
		assert.Equal(t, uint64(1), last.IO["ignition"].Value.Uint)
		_, hasCard := last.IO["driver_card_id"]
		assert.Equal(t, c == codec.Codec8E, hasCard)
	}
}
