package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLoggerWith("json", "warn", &buf)
	lg.Info("dropped")
	lg.Warn("kept", "imei", "356307042441013")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	assert.Equal(t, "kept", m["msg"])
	assert.Equal(t, "avl-svr", m["app"])
	assert.Equal(t, "356307042441013", m["imei"])

	buf.Reset()
	NewLoggerWith("text", "info", &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewMux(t *testing.T) {
	PacketsRecv.Inc()
	srv := httptest.NewServer(NewMux())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(res.Body)
	assert.Contains(t, body.String(), "codec_packets_received_total")
}
