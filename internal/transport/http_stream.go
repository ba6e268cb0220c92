package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/fenilsonani/smarthttp/internal/giterr"
	"github.com/fenilsonani/smarthttp/internal/pool"
	"github.com/fenilsonani/smarthttp/internal/stream"
)

// chunkSize is the smallest chunk a run of small chunked writes is coalesced into.
const chunkSize = 4096

var (
	errStreamClosed  = errors.New("stream closed")
	errListingWrite  = errors.New("listing actions carry no request body")
	errInvalidHeader = errors.New("invalid location header")
)

// HTTPStream drives one request/response cycle for a Descriptor. It is created
// by HTTP.Action and must not outlive it.
type HTTPStream struct {
	http *HTTP
	desc Descriptor

	conn    stream.Stream // connection the current request went out on
	sent    bool          // request headers written
	chunked *chunkedBody  // open chunked request awaiting the first Read
	resp    *http.Response
	closed  bool
	err     error // first send or response failure, returned from then on

	// body keeps every written byte so the request can be replayed against a
	// redirect target.
	body     *pool.Pool
	segments [][]byte
	bodyLen  int
}

var _ SmartStream = (*HTTPStream)(nil)

func newHTTPStream(h *HTTP, d Descriptor) *HTTPStream {
	return &HTTPStream{http: h, desc: d}
}

// Descriptor returns the request shape this stream sends.
func (s *HTTPStream) Descriptor() Descriptor {
	return s.desc
}

// Write adds p to the request body. Non-chunked actions send the whole
// request on the first Write, so a second Write fails. Chunked actions keep
// the request open until the first Read.
func (s *HTTPStream) Write(p []byte) (int, error) {
	if s.err != nil && !s.closed {
		return 0, s.err
	}
	n, err := s.write(p)
	s.http.metrics.recordFailure(err)
	return n, err
}

func (s *HTTPStream) write(p []byte) (int, error) {
	if s.closed {
		return 0, giterr.Protocol("write", errStreamClosed)
	}
	if s.desc.Listing() {
		return 0, giterr.Protocol("write", errListingWrite)
	}
	if s.resp != nil || (s.sent && !s.desc.Chunked) {
		return 0, giterr.Protocol("write", giterr.ErrRequestSent)
	}
	if !s.http.Connected() {
		return 0, giterr.Network("write", giterr.ErrNotConnected)
	}

	if !s.desc.Chunked {
		if err := s.record(p); err != nil {
			return 0, s.fail(err)
		}
		if err := s.sendRequest(); err != nil {
			return 0, s.fail(err)
		}
		return len(p), nil
	}

	if s.chunked == nil {
		if err := s.startChunked(); err != nil {
			return 0, s.fail(err)
		}
	}
	if _, err := s.chunked.Write(p); err != nil {
		return 0, s.fail(asNetwork("write", err))
	}
	if err := s.record(p); err != nil {
		return 0, s.fail(err)
	}
	return len(p), nil
}

// Read returns response body bytes. The first Read sends the request if it
// has not gone out yet, follows redirects and checks the status. Once sending
// or reading the response has failed, every later call returns that error.
func (s *HTTPStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, giterr.Protocol("read", errStreamClosed)
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.resp == nil {
		if err := s.awaitResponse(); err != nil {
			s.http.metrics.recordFailure(err)
			return 0, s.fail(err)
		}
	}

	n, err := s.resp.Body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = asNetwork("read", err)
		s.http.metrics.recordFailure(err)
	}
	return n, err
}

// Close releases the stream. A chunked request that was started but never
// finished by a Read is discarded and its connection torn down.
func (s *HTTPStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.chunked != nil && s.resp == nil {
		s.http.logger.Warn("smarthttp: discarding unfinished chunked request",
			"service", s.desc.Service.String(), "bytes", s.bodyLen)
		s.chunked = nil
	}
	if s.conn != nil && s.conn == s.http.conn {
		_ = s.http.closeConn()
	}
	if s.resp != nil {
		_ = s.resp.Body.Close()
		s.resp = nil
	}
	if s.body != nil {
		s.body.Clear()
		s.segments = nil
	}
	return nil
}

// fail makes err the stream's permanent result and drops its connection,
// which may still hold an unread or half-written exchange.
func (s *HTTPStream) fail(err error) error {
	s.err = err
	s.chunked = nil
	if s.conn != nil && s.conn == s.http.conn {
		_ = s.http.closeConn()
	}
	return err
}

// record keeps a copy of p for replay.
func (s *HTTPStream) record(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if s.body == nil {
		s.body = pool.New(1)
	}
	seg := s.body.Alloc(len(p))
	if seg == nil {
		return giterr.Network("write", fmt.Errorf("cannot buffer %d bytes of request body", len(p)))
	}
	copy(seg, p)
	s.segments = append(s.segments, seg)
	s.bodyLen += len(p)
	return nil
}

// header returns the request header for a body of contentLength bytes, or a
// chunked body when contentLength is negative.
func (s *HTTPStream) header(u *url.URL, contentLength int) http.Header {
	h := make(http.Header)
	h.Set("Host", u.Host)
	h.Set("User-Agent", s.http.userAgent)

	chunked := contentLength < 0
	if chunked || contentLength > 0 {
		h.Set("Accept", s.desc.ResultType)
		h.Set("Content-Type", s.desc.RequestType)
	}
	if chunked {
		h.Set("Transfer-Encoding", "chunked")
	} else if !s.desc.Listing() {
		h.Set("Content-Length", strconv.Itoa(contentLength))
	}
	return h
}

func (s *HTTPStream) writeHeader(w io.Writer, contentLength int) error {
	u := s.http.requestURL(s.desc)
	if _, err := fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", s.desc.Method, u.RequestURI()); err != nil {
		return err
	}
	if err := s.header(u, contentLength).Write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// sendRequest writes the whole request, body included, on the current
// connection.
func (s *HTTPStream) sendRequest() error {
	if !s.http.Connected() {
		return giterr.Network("send", giterr.ErrNotConnected)
	}
	if s.desc.Chunked {
		if err := s.startChunked(); err != nil {
			return err
		}
		return s.finishChunked()
	}

	s.conn = s.http.conn
	bw := bufio.NewWriter(s.conn)
	if err := s.writeHeader(bw, s.bodyLen); err != nil {
		return asNetwork("send", err)
	}
	for _, seg := range s.segments {
		if _, err := bw.Write(seg); err != nil {
			return asNetwork("send", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return asNetwork("send", err)
	}

	s.sent = true
	s.http.metrics.recordRequest(s.desc)
	s.http.logger.Debug("smarthttp: request sent",
		"service", s.desc.Service.String(), "method", s.desc.Method, "bytes", s.bodyLen)
	return nil
}

// startChunked writes the headers of a chunked request followed by any body
// already recorded, and leaves the request open.
func (s *HTTPStream) startChunked() error {
	s.conn = s.http.conn
	bw := bufio.NewWriter(s.conn)
	if err := s.writeHeader(bw, -1); err != nil {
		return asNetwork("send", err)
	}

	cb := newChunkedBody(bw)
	for _, seg := range s.segments {
		if _, err := cb.Write(seg); err != nil {
			return asNetwork("send", err)
		}
	}

	s.chunked = cb
	s.sent = true
	s.http.metrics.recordRequest(s.desc)
	return nil
}

func (s *HTTPStream) finishChunked() error {
	cb := s.chunked
	s.chunked = nil
	if err := cb.Close(); err != nil {
		return asNetwork("send", err)
	}
	s.http.logger.Debug("smarthttp: request sent",
		"service", s.desc.Service.String(), "method", s.desc.Method, "bytes", s.bodyLen, "chunked", true)
	return nil
}

// awaitResponse sends or finishes the request and reads response headers,
// following at most maxRedirects redirects.
func (s *HTTPStream) awaitResponse() error {
	for redirects := 0; ; redirects++ {
		switch {
		case s.chunked != nil:
			if err := s.finishChunked(); err != nil {
				return err
			}
		case !s.sent:
			if err := s.sendRequest(); err != nil {
				return err
			}
		}

		reqURL := s.http.requestURL(s.desc)
		resp, err := http.ReadResponse(bufio.NewReader(s.conn), &http.Request{Method: s.desc.Method, URL: reqURL})
		if err != nil {
			return asNetwork("read", err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			discard(resp)

			if location == "" {
				return &giterr.Error{Kind: giterr.KindProtocol, Op: "read", Status: resp.StatusCode, Err: giterr.ErrMissingLocation}
			}
			if !httpguts.ValidHeaderFieldValue(location) {
				return &giterr.Error{Kind: giterr.KindProtocol, Op: "read", Status: resp.StatusCode, Err: errInvalidHeader}
			}
			if redirects >= s.http.maxRedirects {
				return &giterr.Error{Kind: giterr.KindProtocol, Op: "read", Status: resp.StatusCode, Err: giterr.ErrTooManyRedirects}
			}

			target, err := reqURL.Parse(location)
			if err != nil {
				return giterr.URL("redirect", err)
			}
			if err := s.http.redirect(target, s.desc); err != nil {
				return err
			}
			if err := s.http.Connect(); err != nil {
				return err
			}
			s.http.metrics.recordRedirect(s.desc)
			s.sent = false
			continue
		}

		if resp.StatusCode != http.StatusOK {
			discard(resp)
			return giterr.Status("read", resp.StatusCode)
		}

		s.resp = resp
		return nil
	}
}

// discard drops a response the caller will never see.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// asNetwork classifies err as a network error unless it already carries a
// kind.
func asNetwork(op string, err error) error {
	if giterr.KindOf(err) != 0 {
		return err
	}
	return giterr.Network(op, err)
}

// chunkedBody writes a chunked request body. Small writes are coalesced into
// chunks of chunkSize bytes.
type chunkedBody struct {
	conn   *bufio.Writer
	chunks io.WriteCloser
	buf    *bufio.Writer
}

func newChunkedBody(conn *bufio.Writer) *chunkedBody {
	chunks := httputil.NewChunkedWriter(conn)
	return &chunkedBody{
		conn:   conn,
		chunks: chunks,
		buf:    bufio.NewWriterSize(chunks, chunkSize),
	}
}

func (c *chunkedBody) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// Close writes the last chunk and the empty trailer and flushes everything to
// the connection.
func (c *chunkedBody) Close() error {
	if err := c.buf.Flush(); err != nil {
		return err
	}
	if err := c.chunks.Close(); err != nil {
		return err
	}
	if _, err := c.conn.WriteString("\r\n"); err != nil {
		return err
	}
	return c.conn.Flush()
}
