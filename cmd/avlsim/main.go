// Command avlsim plays a Teltonika tracker against the TCP server: it sends
// the IMEI handshake, then encoded AVL frames, and prints each ACK.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/codec/fmxxx"
	"avl-svr/internal/observability"
)

type options struct {
	addr     string
	imei     string
	codec    string
	records  int
	frames   int
	interval time.Duration
	lat, lon float64
}

func main() {
	var o options
	flag.StringVar(&o.addr, "addr", "localhost:8001", "server address")
	flag.StringVar(&o.imei, "imei", "356307042441013", "device IMEI (15 digits)")
	flag.StringVar(&o.codec, "codec", "8e", "codec: 8, 8e or 16")
	flag.IntVar(&o.records, "records", 1, "records per frame")
	flag.IntVar(&o.frames, "frames", 1, "frames to send")
	flag.DurationVar(&o.interval, "interval", time.Second, "pause between frames")
	flag.Float64Var(&o.lat, "lat", 52.52, "start latitude")
	flag.Float64Var(&o.lon, "lon", 13.405, "start longitude")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	lg := observability.NewLoggerWith("text", *logLevel, os.Stderr)
	if err := run(o, lg); err != nil {
		lg.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func parseCodec(s string) (codec.CodecID, error) {
	switch strings.ToLower(s) {
	case "8":
		return codec.Codec8, nil
	case "8e":
		return codec.Codec8E, nil
	case "16":
		return codec.Codec16, nil
	}
	return 0, fmt.Errorf("unknown codec %q", s)
}

func run(o options, lg *slog.Logger) error {
	c, err := parseCodec(o.codec)
	if err != nil {
		return err
	}
	if len(o.imei) != 15 {
		return fmt.Errorf("imei must be 15 digits, got %q", o.imei)
	}

	conn, err := net.DialTimeout("tcp", o.addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	hs := append([]byte{0x00, byte(len(o.imei))}, o.imei...)
	if _, err := conn.Write(hs); err != nil {
		return err
	}
	reply := make([]byte, 1)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("handshake reply: %w", err)
	}
	if reply[0] != 0x01 {
		return fmt.Errorf("handshake rejected (0x%02x)", reply[0])
	}
	lg.Info("handshake accepted", "imei", o.imei, "addr", o.addr)

	for i := 0; i < o.frames; i++ {
		if i > 0 {
			time.Sleep(o.interval)
		}
		p := buildPacket(c, o.records, i*o.records, o.lat, o.lon, time.Now())
		wire, err := codec.Encode(p)
		if err != nil {
			return err
		}
		if _, err := conn.Write(wire); err != nil {
			return err
		}
		ack := make([]byte, 4)
		if _, err := io.ReadFull(conn, ack); err != nil {
			return fmt.Errorf("ack: %w", err)
		}
		lg.Info("frame sent", "frame", i+1, "codec", c, "bytes", len(wire),
			"records", len(p.Records), "ack", binary.BigEndian.Uint32(ack))
	}
	return nil
}

// buildPacket makes n records one second apart, moving north-east from
// (lat, lon). seq offsets the track so consecutive frames continue it.
func buildPacket(c codec.CodecID, n, seq int, lat, lon float64, now time.Time) *codec.AvlPacket {
	p := &codec.AvlPacket{Codec: c}
	for i := 0; i < n; i++ {
		step := float64(seq + i)
		ts := now.Add(time.Duration(i-n+1) * time.Second)
		speed := uint16(30 + (seq+i)%50)
		elems := map[string]codec.IOReading{}
		add := func(id uint16, v codec.IOValue) {
			el := fmxxx.Lookup(id)
			elems[el.Name] = codec.IOReading{ID: id, Name: el.Name, Description: el.Description, Value: v}
		}
		add(fmxxx.Ignition, codec.IOValue{Width: 1, Uint: 1})
		add(fmxxx.Movement, codec.IOValue{Width: 1, Uint: 1})
		add(fmxxx.GSMSignal, codec.IOValue{Width: 1, Uint: 4})
		add(fmxxx.ExtVolt, codec.IOValue{Width: 2, Uint: 12600})
		add(fmxxx.TotalOd, codec.IOValue{Width: 4, Uint: uint64(1000000 + 12*(seq+i))})
		if c.HasVariableGroup() {
			add(fmxxx.DriverCardID, codec.IOValue{Hex: "31323334"})
		}
		p.Records = append(p.Records, codec.AVLRecord{
			Timestamp: uint64(ts.UnixMilli()),
			Priority:  codec.PriorityLow,
			GPS: codec.GPSFix{
				Latitude:   math.Round((lat+step*0.0001)*1e7) / 1e7,
				Longitude:  math.Round((lon+step*0.0001)*1e7) / 1e7,
				Altitude:   34,
				Angle:      45,
				Satellites: 9,
				SpeedKmh:   speed,
				Valid:      true,
			},
			EventIOID: 0,
			TotalIO:   uint8(len(elems)),
			IO:        elems,
		})
	}
	return p
}
