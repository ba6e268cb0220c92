package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/fenilsonani/smarthttp/internal/giterr"
	"github.com/fenilsonani/smarthttp/internal/stream"
)

const (
	// DefaultUserAgent is sent when Options.UserAgent is empty.
	DefaultUserAgent = "git/1.0 (libgit2core)"

	// DefaultMaxRedirects bounds redirect following when Options.MaxRedirects is zero.
	DefaultMaxRedirects = 10

	// DefaultDialTimeout is used when Options.DialTimeout is zero.
	DefaultDialTimeout = 30 * time.Second

	defaultHTTPPort = 80
)

// Subtransport produces one SmartStream per protocol phase.
type Subtransport interface {
	// Action returns a stream for service against the repository at url.
	Action(url string, service Service) (SmartStream, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error

	// Free releases every resource held by the subtransport.
	Free()
}

// SmartStream carries one request/response cycle. Writes form the request
// body, reads return the response body and io.EOF at its end. Close releases
// the stream.
type SmartStream interface {
	io.ReadWriteCloser
}

// Options configures an HTTP subtransport.
type Options struct {
	// UserAgent is the User-Agent header value.
	UserAgent string

	// MaxRedirects is the number of redirects one request may follow. Zero
	// means DefaultMaxRedirects; a negative value disables redirects.
	MaxRedirects int

	// DialTimeout bounds the TCP connect. Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// Breaker guards connects with a circuit breaker when its
	// FailureThreshold is set.
	Breaker stream.BreakerSettings

	// Factory creates the underlying streams. Nil means plaintext sockets.
	Factory stream.Factory

	Logger  *slog.Logger
	Metrics *Metrics
}

// HTTP is the smart HTTP subtransport. It owns the repository URL and at most
// one connection, which always belongs to the current URL.
//
// An HTTP and the streams it returns are not safe for concurrent use.
type HTTP struct {
	url  *url.URL
	host string
	port int
	conn stream.Stream

	factory      stream.Factory
	userAgent    string
	maxRedirects int
	logger       *slog.Logger
	metrics      *Metrics
}

var _ Subtransport = (*HTTP)(nil)

// New creates an HTTP subtransport without a URL.
func New(opts Options) *HTTP {
	h := &HTTP{
		userAgent:    opts.UserAgent,
		maxRedirects: opts.MaxRedirects,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if h.userAgent == "" {
		h.userAgent = DefaultUserAgent
	}
	if h.maxRedirects == 0 {
		h.maxRedirects = DefaultMaxRedirects
	} else if h.maxRedirects < 0 {
		h.maxRedirects = 0
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	factory := opts.Factory
	if factory == nil {
		timeout := opts.DialTimeout
		if timeout == 0 {
			timeout = DefaultDialTimeout
		}
		factory = stream.SocketFactory(timeout, h.logger)
	}
	h.factory = stream.BreakerFactory(factory, opts.Breaker)

	return h
}

// URL returns a copy of the current repository URL, or nil.
func (h *HTTP) URL() *url.URL {
	if h.url == nil {
		return nil
	}
	u := *h.url
	return &u
}

// Connected reports whether a connection is open.
func (h *HTTP) Connected() bool {
	return h.conn != nil
}

// ParseURL validates raw and makes it the repository URL, dropping any open
// connection. Only http URLs with a host are accepted.
func (h *HTTP) ParseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return giterr.URL("parse url", err)
	}
	return h.setURL(u)
}

func (h *HTTP) setURL(u *url.URL) error {
	host, port, err := validateURL(u)
	if err != nil {
		return err
	}

	h.closeConn()
	h.url = u
	h.host = host
	h.port = port
	return nil
}

// validateURL checks u and normalises its host in place.
func validateURL(u *url.URL) (string, int, error) {
	hostname := u.Hostname()
	if hostname == "" {
		return "", 0, giterr.URL("parse url", errors.New("there is no host in the url"))
	}
	if u.Scheme != "http" {
		return "", 0, giterr.URL("parse url", fmt.Errorf("unsupported scheme %q: only http is supported", u.Scheme))
	}

	port := defaultHTTPPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return "", 0, giterr.URL("parse url", fmt.Errorf("invalid port %q", p))
		}
		port = n
	}

	if net.ParseIP(hostname) == nil {
		ascii := hostname
		if a, err := idna.ToASCII(hostname); err == nil {
			ascii = a
		}
		if ascii != hostname {
			if u.Port() != "" {
				u.Host = net.JoinHostPort(ascii, u.Port())
			} else {
				u.Host = ascii
			}
		}
		hostname = ascii
	}

	return hostname, port, nil
}

// Connect opens a fresh connection to the current URL, closing any open one.
func (h *HTTP) Connect() error {
	if h.url == nil {
		return giterr.URL("connect", giterr.ErrNoURL)
	}
	h.closeConn()

	conn := h.factory(h.host, h.port)
	if err := conn.Connect(); err != nil {
		conn.Free()
		if giterr.KindOf(err) == 0 {
			err = giterr.Network("connect", err)
		}
		h.metrics.recordFailure(err)
		return err
	}

	info := conn.Info()
	h.logger.Debug("smarthttp: connected", "host", h.host, "port", h.port,
		"stream_version", info.Version, "encrypted", info.Encrypted,
		"certificate", stream.SupportsCertificate(conn), "proxy", stream.SupportsProxy(conn))
	h.metrics.recordConnect()
	h.conn = conn
	return nil
}

// Action returns a stream for service. The URL is only parsed on the first
// call; later calls reuse the stored (possibly redirected) URL. Every call
// opens a fresh connection. No request is sent until the stream is used.
func (h *HTTP) Action(rawURL string, service Service) (SmartStream, error) {
	d, err := Describe(service)
	if err != nil {
		return nil, err
	}
	if h.url == nil {
		if err := h.ParseURL(rawURL); err != nil {
			h.metrics.recordFailure(err)
			return nil, err
		}
	}
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return newHTTPStream(h, d), nil
}

// Close releases the connection and keeps the URL.
func (h *HTTP) Close() error {
	return h.closeConn()
}

// Free releases the connection and forgets the URL.
func (h *HTTP) Free() {
	_ = h.closeConn()
	h.url = nil
	h.host = ""
	h.port = 0
}

func (h *HTTP) closeConn() error {
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn.Free()
	h.conn = nil
	return err
}

// requestURL returns the URL d is sent to.
func (h *HTTP) requestURL(d Descriptor) *url.URL {
	u := *h.url
	u.Path = strings.TrimSuffix(u.Path, "/") + d.Path
	u.RawPath = ""
	u.RawQuery = d.Query
	u.Fragment = ""
	u.User = nil
	return &u
}

// redirect makes target the repository URL. A target ending in d's service
// path is trimmed back to the repository base.
func (h *HTTP) redirect(target *url.URL, d Descriptor) error {
	u := *target
	if strings.HasSuffix(u.Path, d.Path) {
		u.Path = strings.TrimSuffix(u.Path, d.Path)
		u.RawPath = ""
		u.RawQuery = ""
	}
	u.Fragment = ""

	from := h.url.Redacted()
	if err := h.setURL(&u); err != nil {
		return err
	}
	h.logger.Debug("smarthttp: following redirect", "service", d.Service.String(), "from", from, "to", u.Redacted())
	return nil
}
