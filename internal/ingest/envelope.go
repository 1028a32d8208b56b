package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNoPayload = errors.New("no base64 payload found")

const (
	minPayloadBytes   = 8
	minSourceProtoLen = 20
	minFallbackStrLen = 100
)

// Envelope is a Soracom Funnel style event carrying a base64 AVL frame
// in one of several fields.
type Envelope map[string]interface{}

func (e Envelope) str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e Envelope) IMEI() string       { return e.str("imei") }
func (e Envelope) IMSI() string       { return e.str("imsi") }
func (e Envelope) OperatorID() string { return e.str("operatorId") }

// Timestamp returns the numeric timestamp field, or 0.
func (e Envelope) Timestamp() int64 {
	if f, ok := e["timestamp"].(float64); ok {
		return int64(f)
	}
	return 0
}

// Keys returns the top-level field names, sorted.
func (e Envelope) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type candidate struct {
	source string
	value  interface{}
}

// FindPayload locates and decodes the frame. Known fields are tried first
// (sourceProtocol only when long enough to not be a protocol name), then
// any top-level string over 100 characters. A value qualifies when it
// decodes to more than 8 bytes.
func (e Envelope) FindPayload() ([]byte, string, error) {
	cands := []candidate{
		{"sourceProtocol", e["sourceProtocol"]},
		{"payload", e["payload"]},
		{"payloads", e["payloads"]},
		{"data", e["data"]},
	}
	if dest, ok := e["destination"].(map[string]interface{}); ok {
		cands = append(cands,
			candidate{"destination.payload", dest["payload"]},
			candidate{"destination.data", dest["data"]},
		)
	}
	for _, c := range cands {
		s, ok := c.value.(string)
		if !ok || s == "" {
			continue
		}
		if c.source == "sourceProtocol" && len(s) < minSourceProtoLen {
			continue
		}
		if b, ok := decodeBase64(s); ok {
			return b, c.source, nil
		}
	}

	for _, k := range e.Keys() {
		s, ok := e[k].(string)
		if !ok || len(s) <= minFallbackStrLen {
			continue
		}
		if b, ok := decodeBase64(s); ok {
			return b, k, nil
		}
	}
	return nil, "", fmt.Errorf("%w; fields: %s", ErrNoPayload, strings.Join(e.Keys(), ","))
}

func decodeBase64(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, false
		}
	}
	return b, len(b) > minPayloadBytes
}
