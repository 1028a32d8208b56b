package dispatcher

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/observability"
	"avl-svr/internal/pipeline"
	"avl-svr/internal/utilities"
)

// Sink receives every decoded batch. Errors are logged and counted; they
// never fail the frame.
type Sink interface {
	Name() string
	Publish(ctx context.Context, b *pipeline.Batch) error
}

type Dispatcher struct {
	sinks []Sink
	log   *slog.Logger
	raw   *utilities.RawLog
	now   func() time.Time
}

type Option func(*Dispatcher)

func WithSink(s Sink) Option { return func(d *Dispatcher) { d.sinks = append(d.sinks, s) } }

func WithRawLog(l *utilities.RawLog) Option { return func(d *Dispatcher) { d.raw = l } }

func New(lg *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{log: lg.With("component", "dispatcher"), now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ProcessIncoming decodes one frame and fans the result out to every sink.
// The only error is a frame too short to decode at all; the returned batch
// may still hold zero records.
func (d *Dispatcher) ProcessIncoming(ctx context.Context, meta pipeline.Meta, data []byte) (*pipeline.Batch, error) {
	rawHex := hex.EncodeToString(data)
	if err := d.raw.CreateLog("ALLTRACKINGS", meta.IMEI+" "+rawHex); err != nil {
		d.log.Warn("raw log failed", "error", err)
	}
	observability.PacketsRecv.Inc()

	start := time.Now()
	pkt, err := codec.Decode(data)
	observability.ObserveParseLatency(start)
	if err != nil {
		observability.ParseErrors.Inc()
		d.log.Warn("frame rejected", "imei", meta.IMEI, "source", meta.Source, "bytes", len(data), "raw", rawHex, "error", err)
		return nil, err
	}

	for _, w := range pkt.Warnings {
		observability.DecodeWarnings.WithLabelValues(string(w.Kind)).Inc()
		d.log.Warn("decode warning", "imei", meta.IMEI, "kind", w.Kind, "offset", w.Offset, "detail", w.Message)
	}
	if len(pkt.Records) == 0 && len(pkt.Warnings) > 0 {
		d.log.Debug("frame without records", "imei", meta.IMEI, "raw", rawHex)
	}
	observability.RecordsDecoded.Add(float64(len(pkt.Records)))

	batch := pipeline.BuildBatch(meta, pkt, d.now())
	for _, s := range d.sinks {
		if err := s.Publish(ctx, batch); err != nil {
			observability.SinkErrors.WithLabelValues(s.Name()).Inc()
			d.log.Warn("sink publish failed", "sink", s.Name(), "imei", meta.IMEI, "error", err)
		}
	}

	d.log.Info("frame decoded",
		"imei", meta.IMEI,
		"source", meta.Source,
		"codec", pkt.CodecName,
		"records", len(pkt.Records),
		"declared", pkt.DeclaredRecords,
		"warnings", len(pkt.Warnings),
	)
	return batch, nil
}
