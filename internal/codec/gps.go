package codec

const (
	gpsElementSize = 15
	coordScale     = 10000000
)

// decodeGPS reads the fixed 15-byte GPS element:
// lon(4, signed) | lat(4, signed) | alt(2, signed) | angle(2) | sats(1) | speed(2)
func decodeGPS(r *reader) (GPSFix, error) {
	b, err := r.safeRead(gpsElementSize, "gps element")
	if err != nil {
		return GPSFix{}, err
	}
	g := &reader{buf: b}
	lon, _ := g.u32("longitude")
	lat, _ := g.u32("latitude")
	alt, _ := g.u16("altitude")
	angle, _ := g.u16("angle")
	sats, _ := g.u8("satellites")
	speed, _ := g.u16("speed")

	fix := GPSFix{
		Longitude:  float64(int32(lon)) / coordScale,
		Latitude:   float64(int32(lat)) / coordScale,
		Altitude:   int16(alt),
		Angle:      angle,
		Satellites: sats,
		SpeedKmh:   speed,
	}
	fix.Valid = fix.Satellites > 0 && fix.Latitude != 0 && fix.Longitude != 0
	return fix, nil
}
