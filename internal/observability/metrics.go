package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TCPConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_tcp_connections_total",
		Help: "Total TCP connections accepted",
	})
	HandshakeOK = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_handshake_ok_total",
		Help: "Total successful IMEI handshakes",
	})
	PacketsRecv = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_packets_received_total",
		Help: "Total AVL frames received (TCP and HTTP ingest)",
	})
	RecordsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_records_decoded_total",
		Help: "Total AVL records decoded",
	})
	RecordsAck = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_records_ack_total",
		Help: "Total AVL records acknowledged to devices",
	})
	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_parse_errors_total",
		Help: "Frames rejected without any decoded result",
	})
	DecodeWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_decode_warnings_total",
		Help: "Non-fatal decode warnings by kind",
	}, []string{"kind"})
	RedisSetErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_redis_set_errors_total",
		Help: "Errors writing device state to Redis",
	})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_sink_errors_total",
		Help: "Errors publishing decoded batches by sink",
	}, []string{"sink"})
	IOChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_io_changes_total",
		Help: "IO state changes detected by key",
	}, []string{"key"})
	IngestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_ingest_requests_total",
		Help: "HTTP ingest requests by status code",
	}, []string{"status"})
	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codec_feed_clients",
		Help: "Connected live feed websocket clients",
	})
	ParseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codec_parse_latency_seconds",
		Help:    "Decode latency per frame",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveParseLatency(start time.Time) {
	ParseLatency.Observe(time.Since(start).Seconds())
}

// NewMux returns a mux serving /metrics and /healthz. Callers add their own
// routes before starting the server.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// StartHTTPServer serves h on :port in the background.
func StartHTTPServer(port string, h http.Handler, lg *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("http server failed", "error", err)
		}
	}()
	return srv
}
