package stream

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

func setupTcpTestServer(t *testing.T, serverLogic func(net.Conn)) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serverLogic(conn)
		conn.Close()
	}()

	t.Cleanup(func() {
		listener.Close()
		<-done
	})

	return addr.IP.String(), addr.Port
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

func TestSocketStream_Construction(t *testing.T) {
	s := NewSocketStream("example.com", 80, time.Second, nil)
	assert.Equal(t, "example.com:80", s.Addr())
	assert.False(t, s.Connected())
	assert.Equal(t, Info{Version: 1}, s.Info())
	assert.False(t, SupportsCertificate(s))
	assert.False(t, SupportsProxy(s))
}

func TestSocketStream_RoundTrip(t *testing.T) {
	host, port := setupTcpTestServer(t, func(conn net.Conn) {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		conn.Write(append([]byte("echo:"), buf...))
	})

	s := NewSocketStream(host, port, time.Second, nil)
	require.NoError(t, s.Connect())
	assert.True(t, s.Connected())

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", string(got))

	n, err = s.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Close())
	assert.False(t, s.Connected())
}

func TestSocketStream_ConnectFailure(t *testing.T) {
	s := NewSocketStream("127.0.0.1", closedPort(t), time.Second, nil)
	err := s.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, giterr.ErrNetwork)
	assert.False(t, s.Connected())
}

func TestSocketStream_NotConnected(t *testing.T) {
	s := NewSocketStream("127.0.0.1", 1, time.Second, nil)

	_, err := s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, giterr.ErrNetwork)
	assert.ErrorIs(t, err, giterr.ErrNotConnected)

	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, giterr.ErrNetwork)
	assert.ErrorIs(t, err, giterr.ErrNotConnected)
}

func TestSocketStream_CloseIsIdempotent(t *testing.T) {
	host, port := setupTcpTestServer(t, func(conn net.Conn) {})

	s := NewSocketStream(host, port, time.Second, nil)
	assert.NoError(t, s.Close())

	require.NoError(t, s.Connect())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	s.Free()
}

func TestSocketStream_ConnectReplacesConnection(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for i := 0; i < 2; i++ {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	s := NewSocketStream(addr.IP.String(), addr.Port, time.Second, nil)
	require.NoError(t, s.Connect())
	first := <-accepted
	defer first.Close()

	require.NoError(t, s.Connect())
	second := <-accepted
	defer second.Close()

	// the first connection was closed by the second Connect
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = first.Read(make([]byte, 1))
	assert.True(t, errors.Is(err, io.EOF), "expected EOF, got %v", err)

	require.NoError(t, s.Close())
}

func TestSocketFactory(t *testing.T) {
	f := SocketFactory(time.Second, nil)
	s := f("localhost", 8080)
	sock, ok := s.(*SocketStream)
	require.True(t, ok)
	assert.Equal(t, "localhost:8080", sock.Addr())
}
