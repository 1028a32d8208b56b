package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"avl-svr/internal/observability"
	"avl-svr/internal/pipeline"
)

var (
	ErrHandshake     = errors.New("invalid IMEI handshake")
	ErrFrameTooLarge = errors.New("frame exceeds max size")
)

const (
	imeiLen     = 15
	headerLen   = 8
	trailerLen  = 4
	handshakeOK = 0x01
	handshakeNo = 0x00
)

// Processor decodes a frame and publishes the result.
type Processor interface {
	ProcessIncoming(ctx context.Context, meta pipeline.Meta, data []byte) (*pipeline.Batch, error)
}

type TcpServer struct {
	proc        Processor
	log         *slog.Logger
	maxFrame    int
	readTimeout time.Duration
	onConnect   func(imei string, remote net.Addr)

	mu     sync.Mutex
	active map[string]net.Conn
}

type Option func(*TcpServer)

func WithMaxFrameSize(n int) Option { return func(s *TcpServer) { s.maxFrame = n } }

func WithReadTimeout(d time.Duration) Option { return func(s *TcpServer) { s.readTimeout = d } }

// WithOnConnect registers a callback run after each accepted handshake.
func WithOnConnect(fn func(imei string, remote net.Addr)) Option {
	return func(s *TcpServer) { s.onConnect = fn }
}

func New(proc Processor, lg *slog.Logger, opts ...Option) *TcpServer {
	s := &TcpServer{
		proc:        proc,
		log:         lg.With("component", "tcp"),
		maxFrame:    64 * 1024,
		readTimeout: 5 * time.Minute,
		active:      make(map[string]net.Conn),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *TcpServer) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections until ctx is done; it then closes the
// listener and returns nil.
func (s *TcpServer) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	defer listener.Close()

	s.log.Info("TCP server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.HandleConnection(ctx, conn)
	}
}

// ActiveCount returns the number of handshaken sessions.
func (s *TcpServer) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *TcpServer) register(imei string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.active[imei]; ok && old != conn {
		s.log.Warn("duplicate session, closing previous", "imei", imei, "remote", old.RemoteAddr().String())
		_ = old.Close()
	}
	s.active[imei] = conn
}

func (s *TcpServer) unregister(imei string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[imei] == conn {
		delete(s.active, imei)
	}
}

// HandleConnection runs one device session: handshake, then frames until
// the device disconnects, a read times out or ctx is done.
func (s *TcpServer) HandleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	observability.TCPConnections.Inc()
	remote := conn.RemoteAddr()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.deadline(conn)
	imei, err := readHandshake(conn)
	if err != nil {
		s.log.Warn("handshake failed", "remote", addrString(remote), "error", err)
		if errors.Is(err, ErrHandshake) {
			_, _ = conn.Write([]byte{handshakeNo})
		}
		return
	}
	if _, err := conn.Write([]byte{handshakeOK}); err != nil {
		return
	}
	observability.HandshakeOK.Inc()
	s.register(imei, conn)
	defer func() {
		s.unregister(imei, conn)
		s.log.Info("device disconnected", "imei", imei)
	}()
	s.log.Info("handshake", "imei", imei, "remote", addrString(remote))
	if s.onConnect != nil {
		s.onConnect(imei, remote)
	}

	meta := pipeline.Meta{IMEI: imei, Source: "tcp"}
	for {
		s.deadline(conn)
		frame, err := readFrame(conn, s.maxFrame)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.log.Warn("read frame", "imei", imei, "error", err)
			}
			return
		}

		var n int
		if b, err := s.proc.ProcessIncoming(ctx, meta, frame); err == nil {
			n = len(b.Tracks)
		}
		if _, err := conn.Write(ack(n)); err != nil {
			s.log.Warn("ack write failed", "imei", imei, "error", err)
			return
		}
		observability.RecordsAck.Add(float64(n))
	}
}

func (s *TcpServer) deadline(conn net.Conn) {
	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
}

// readHandshake reads the 2-byte length and the ASCII IMEI that follows.
func readHandshake(r io.Reader) (string, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", err
	}
	if n := binary.BigEndian.Uint16(hdr[:]); n != imeiLen {
		return "", fmt.Errorf("%w: length %d", ErrHandshake, n)
	}
	buf := make([]byte, imeiLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	for _, c := range buf {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("%w: non-digit in %q", ErrHandshake, buf)
		}
	}
	return string(buf), nil
}

// readFrame reads one AVL frame: the 8-byte header, then dataLength bytes
// of body and the 4-byte CRC field.
func readFrame(r io.Reader, max int) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	dataLen := int64(binary.BigEndian.Uint32(hdr[4:8]))
	total := int64(headerLen) + dataLen + trailerLen
	if max > 0 && total > int64(max) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, total, max)
	}
	frame := make([]byte, total)
	copy(frame, hdr[:])
	if _, err := io.ReadFull(r, frame[headerLen:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func ack(n int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
