package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"avl-svr/internal/pipeline"
)

var ErrNotConnected = errors.New("link: not connected")

// Client keeps one NDJSON connection to the socket proxy and reconnects
// when it drops.
type Client struct {
	addr   string
	logger *slog.Logger

	retry        time.Duration
	reconnect    time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	// one line on the wire at a time
	wsem chan struct{}

	smu  sync.Mutex
	subs map[string]string // imei -> last announced imsi/operator
}

func New(addr string, lg *slog.Logger) *Client {
	return &Client{
		addr:         addr,
		logger:       lg.With("component", "link"),
		retry:        5 * time.Second,
		reconnect:    2 * time.Second,
		writeTimeout: 5 * time.Second,
		wsem:         make(chan struct{}, 1),
		subs:         make(map[string]string),
	}
}

func (c *Client) Name() string { return "link" }

// Run dials the proxy and reads from it until ctx is done.
func (c *Client) Run(ctx context.Context) {
	var d net.Dialer
	for ctx.Err() == nil {
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.logger.Error("link: dial failed", "addr", c.addr, "err", err)
			if !sleepCtx(ctx, c.retry) {
				return
			}
			continue
		}

		c.setConn(conn)
		c.logger.Info("link: connected", "remote", conn.RemoteAddr().String())

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		c.readLoop(conn)
		stop()

		c.clearConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("link: connection closed, reconnecting...")
		if !sleepCtx(ctx, c.reconnect) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Connected reports whether a proxy connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		// proxy commands are not routed yet; log them
		c.logger.Info("link: incoming line", "line", r.Text())
	}
	if err := r.Err(); err != nil && err != io.EOF {
		c.logger.Warn("link: read error", "err", err)
	}
}

// sendNDJSON writes v as one JSON line. Lines from concurrent sessions
// never interleave. A write is bounded by writeTimeout and ctx; a failed
// write drops the connection so Run reconnects on a clean stream.
func (c *Client) sendNDJSON(ctx context.Context, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.wsem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.wsem }()

	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if _, err := conn.Write(append(b, '\n')); err != nil {
		c.clearConn(conn)
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

type deviceConnectPayload struct {
	DeviceConnect bool   `json:"device_connect"`
	IMEI          string `json:"imei"`
	RemoteIP      string `json:"remote_ip,omitempty"`
	RemotePort    int    `json:"remote_port,omitempty"`
}

type deviceUpdatePayload struct {
	DeviceUpdate bool   `json:"device_update"`
	IMEI         string `json:"imei"`
	IMSI         string `json:"imsi,omitempty"`
	OperatorID   string `json:"operator_id,omitempty"`
}

// SendDevice announces a device according to info.State.
func (c *Client) SendDevice(ctx context.Context, info DeviceInfo) error {
	var pl interface{}
	switch info.State {
	case DeviceStateConnect:
		pl = deviceConnectPayload{
			DeviceConnect: true,
			IMEI:          info.IMEI,
			RemoteIP:      info.RemoteIP,
			RemotePort:    info.RemotePort,
		}
	case DeviceStateUpdate:
		pl = deviceUpdatePayload{
			DeviceUpdate: true,
			IMEI:         info.IMEI,
			IMSI:         info.IMSI,
			OperatorID:   info.OperatorID,
		}
	default:
		return nil
	}
	if err := c.sendNDJSON(ctx, pl); err != nil {
		c.logger.Warn("link: send device failed", "imei", info.IMEI, "state", info.State, "err", err)
		return err
	}
	return nil
}

// announce sends device_update when the batch carries subscriber data
// that differs from what was last sent for the IMEI.
func (c *Client) announce(ctx context.Context, m pipeline.Meta) error {
	if m.IMSI == "" && m.OperatorID == "" {
		return nil
	}
	key := m.IMSI + "/" + m.OperatorID
	c.smu.Lock()
	same := c.subs[m.IMEI] == key
	c.smu.Unlock()
	if same {
		return nil
	}
	if err := c.SendDevice(ctx, NewUpdateInfo(m)); err != nil {
		return err
	}
	c.smu.Lock()
	c.subs[m.IMEI] = key
	c.smu.Unlock()
	return nil
}

// Publish sends device_update if needed, then one tracking line per
// decoded record.
func (c *Client) Publish(ctx context.Context, b *pipeline.Batch) error {
	if err := c.announce(ctx, b.Meta); err != nil {
		return err
	}
	for _, tr := range b.Tracks {
		if err := c.sendNDJSON(ctx, tr); err != nil {
			return err
		}
	}
	return nil
}
