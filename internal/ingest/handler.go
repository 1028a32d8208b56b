package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"avl-svr/internal/codec"
	"avl-svr/internal/observability"
	"avl-svr/internal/pipeline"
)

const maxBody = 1 << 20

type Processor interface {
	ProcessIncoming(ctx context.Context, meta pipeline.Meta, data []byte) (*pipeline.Batch, error)
}

type Handler struct {
	proc Processor
	log  *slog.Logger
}

func NewHandler(proc Processor, lg *slog.Logger) *Handler {
	return &Handler{proc: proc, log: lg.With("component", "ingest")}
}

type response struct {
	Message       string   `json:"message,omitempty"`
	Error         string   `json:"error,omitempty"`
	RecordsParsed int      `json:"records_parsed"`
	Warnings      int      `json:"warnings"`
	IMEI          string   `json:"imei,omitempty"`
	PayloadSource string   `json:"payload_source,omitempty"`
	EventKeys     []string `json:"event_keys,omitempty"`
}

// ServeHTTP handles POST /ingest.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reply(w, http.StatusMethodNotAllowed, response{Error: "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		h.reply(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.reply(w, http.StatusBadRequest, response{Error: "invalid JSON: " + err.Error()})
		return
	}

	data, source, err := env.FindPayload()
	if err != nil {
		h.log.Warn("no payload in envelope", "imei", env.IMEI(), "fields", env.Keys())
		h.reply(w, http.StatusBadRequest, response{Error: "No payload found", IMEI: env.IMEI(), EventKeys: env.Keys()})
		return
	}
	h.log.Debug("payload located", "imei", env.IMEI(), "source", source, "bytes", len(data))

	meta := pipeline.Meta{
		IMEI:           env.IMEI(),
		IMSI:           env.IMSI(),
		OperatorID:     env.OperatorID(),
		Source:         "ingest",
		EventTimestamp: env.Timestamp(),
	}
	b, err := h.proc.ProcessIncoming(r.Context(), meta, data)
	if errors.Is(err, codec.ErrBufferTooShort) {
		h.reply(w, http.StatusUnprocessableEntity, response{Error: err.Error(), IMEI: meta.IMEI, PayloadSource: source})
		return
	}
	if err != nil {
		h.log.Error("ingest failed", "imei", meta.IMEI, "error", err)
		h.reply(w, http.StatusInternalServerError, response{Error: err.Error(), IMEI: meta.IMEI})
		return
	}

	h.reply(w, http.StatusOK, response{
		Message:       "Success",
		RecordsParsed: len(b.Tracks),
		Warnings:      len(b.Packet.Warnings),
		IMEI:          meta.IMEI,
		PayloadSource: source,
	})
}

func (h *Handler) reply(w http.ResponseWriter, status int, body response) {
	observability.IngestRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("write response", "error", err)
	}
}
