package pipeline

import (
	"time"

	"avl-svr/internal/codec"
)

type TrackingObject struct {
	IMEI     string `json:"imei"`
	Datetime string `json:"dt"`
	TsMs     uint64 `json:"ts_ms"`

	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Alt  int     `json:"alt"`
	Spd  int     `json:"spd"`
	Crs  int     `json:"crs"`
	Sats int     `json:"sats"`

	Priority int               `json:"priority"`
	EventIO  int               `json:"event_io"`
	PermIO   map[string]uint64 `json:"perm_io"`
	RawIO    map[string]string `json:"raw_io,omitempty"`

	MsgType int `json:"msg_type"` // 1=live, 0=buffer
	Fix     int `json:"fix"`      // 1 if sats>3 and coords valid
}

// Meta identifies where a frame came from.
type Meta struct {
	IMEI       string `json:"imei"`
	IMSI       string `json:"imsi,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`
	Source     string `json:"source"` // "tcp" or "ingest"

	// EventTimestamp is the envelope's own timestamp (ms) for ingested frames.
	EventTimestamp int64 `json:"event_ts,omitempty"`
}

// Batch is one decoded frame plus its per-record tracking objects, the unit
// handed to every sink.
type Batch struct {
	Meta       Meta              `json:"meta"`
	ReceivedAt time.Time         `json:"received_at"`
	Packet     *codec.AvlPacket  `json:"packet"`
	Tracks     []*TrackingObject `json:"tracks"`
}

// Latest returns the newest tracking object by timestamp, or nil.
func (b *Batch) Latest() *TrackingObject {
	var out *TrackingObject
	for _, tr := range b.Tracks {
		if out == nil || tr.TsMs >= out.TsMs {
			out = tr
		}
	}
	return out
}
