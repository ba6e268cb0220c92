package stream

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

// SocketStream is a Stream over one plaintext TCP connection.
//
// A SocketStream is not safe for concurrent use.
type SocketStream struct {
	host   string
	port   int
	dialer net.Dialer
	conn   net.Conn
	logger *slog.Logger
}

// NewSocketStream returns an unconnected stream to host:port. A zero timeout
// means the dial blocks until the operating system gives up.
func NewSocketStream(host string, port int, timeout time.Duration, logger *slog.Logger) *SocketStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketStream{
		host:   host,
		port:   port,
		dialer: net.Dialer{Timeout: timeout},
		logger: logger,
	}
}

// SocketFactory returns a Factory producing SocketStreams.
func SocketFactory(timeout time.Duration, logger *slog.Logger) Factory {
	return func(host string, port int) Stream {
		return NewSocketStream(host, port, timeout, logger)
	}
}

// Addr returns the host:port the stream connects to.
func (s *SocketStream) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Connect resolves and dials the stored address, closing any open connection
// first.
func (s *SocketStream) Connect() error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	addr := s.Addr()
	conn, err := s.dialer.Dial("tcp", addr)
	if err != nil {
		return giterr.Network("connect", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return giterr.Network("connect", err)
		}
	}

	s.logger.Debug("smarthttp: socket connected", "addr", addr)
	s.conn = conn
	return nil
}

// Connected reports whether a connection is open.
func (s *SocketStream) Connected() bool {
	return s.conn != nil
}

func (s *SocketStream) Read(p []byte) (int, error) {
	if s.conn == nil {
		return 0, giterr.Network("read", giterr.ErrNotConnected)
	}

	n, err := s.conn.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		return n, giterr.Network("read", err)
	}
	return n, nil
}

func (s *SocketStream) Write(p []byte) (int, error) {
	if s.conn == nil {
		return 0, giterr.Network("write", giterr.ErrNotConnected)
	}

	n, err := s.conn.Write(p)
	if err != nil {
		return n, giterr.Network("write", err)
	}
	return n, nil
}

// Close releases the connection. Closing a closed stream is a no-op.
func (s *SocketStream) Close() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return giterr.Network("close", err)
	}
	return nil
}

// Free closes the stream.
func (s *SocketStream) Free() {
	_ = s.Close()
}

// Info reports a version 1, unencrypted stream without proxy support.
func (s *SocketStream) Info() Info {
	return Info{Version: Version}
}
