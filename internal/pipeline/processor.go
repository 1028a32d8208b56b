package pipeline

import (
	"time"

	"avl-svr/internal/codec"
)

// liveWindow is how old a single record may be and still count as live.
const liveWindow = 120 * time.Second

func coordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

func CalcFix(sats int, lat, lon float64) int {
	if sats > 3 && coordsValid(lat, lon) {
		return 1
	}
	return 0
}

func decideMsgType(isBatch bool, ts, now time.Time) int {
	if isBatch {
		return 0
	}
	if !ts.IsZero() && now.Sub(ts) > liveWindow {
		return 0
	}
	return 1
}

// BuildTracking flattens one decoded record. Integer IO values land in
// PermIO keyed by catalog name, variable-length values in RawIO as hex.
func BuildTracking(imei string, rec *codec.AVLRecord, msgType int) *TrackingObject {
	tr := &TrackingObject{
		IMEI:     imei,
		Datetime: rec.Datetime,
		TsMs:     rec.Timestamp,
		Lat:      rec.GPS.Latitude,
		Lon:      rec.GPS.Longitude,
		Alt:      int(rec.GPS.Altitude),
		Spd:      int(rec.GPS.SpeedKmh),
		Crs:      int(rec.GPS.Angle),
		Sats:     int(rec.GPS.Satellites),
		Priority: int(rec.Priority),
		EventIO:  int(rec.EventIOID),
		PermIO:   make(map[string]uint64, len(rec.IO)),
		MsgType:  msgType,
	}
	tr.Fix = CalcFix(tr.Sats, tr.Lat, tr.Lon)
	for name, io := range rec.IO {
		if io.Value.IsBytes() {
			if tr.RawIO == nil {
				tr.RawIO = map[string]string{}
			}
			tr.RawIO[name] = io.Value.Hex
			continue
		}
		tr.PermIO[name] = io.Value.Uint
	}
	return tr
}

// BuildBatch converts a decoded packet into tracking objects. A frame with
// more than one record is buffered data; a single record is live unless it
// is older than liveWindow.
func BuildBatch(meta Meta, pkt *codec.AvlPacket, now time.Time) *Batch {
	b := &Batch{
		Meta:       meta,
		ReceivedAt: now.UTC(),
		Packet:     pkt,
		Tracks:     make([]*TrackingObject, 0, len(pkt.Records)),
	}
	isBatch := len(pkt.Records) > 1
	for i := range pkt.Records {
		rec := &pkt.Records[i]
		mt := decideMsgType(isBatch, rec.Time(), now)
		b.Tracks = append(b.Tracks, BuildTracking(meta.IMEI, rec, mt))
	}
	return b
}
