// Package pktline reads and writes Git pkt-line framing and parses the ref
// advertisement a smart HTTP server returns for info/refs.
package pktline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

const (
	// MaxPayload is the largest payload a single packet can carry.
	MaxPayload = 65516

	lenSize = 4
	maxLen  = MaxPayload + lenSize
)

var flushPkt = []byte("0000")

// Reader reads packets from an underlying stream.
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

// NewReader creates a packet reader for r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadPacket returns the payload of the next packet. A flush packet yields a
// nil payload, an empty data packet a non-nil empty one. The returned slice is
// only valid until the next call. At a clean end of input ReadPacket returns
// io.EOF.
func (r *Reader) ReadPacket() ([]byte, error) {
	var hdr [lenSize]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, giterr.Protocol("pkt-line", fmt.Errorf("truncated length %q", hdr[:]))
		}
		return nil, err
	}

	n, err := strconv.ParseUint(string(hdr[:]), 16, 16)
	if err != nil {
		return nil, giterr.Protocol("pkt-line", fmt.Errorf("invalid length %q", hdr[:]))
	}
	switch {
	case n == 0:
		return nil, nil
	case n < lenSize || n > maxLen:
		return nil, giterr.Protocol("pkt-line", fmt.Errorf("invalid length %q", hdr[:]))
	}

	size := int(n) - lenSize
	if cap(r.buf) < size {
		r.buf = make([]byte, size)
	}
	r.buf = r.buf[:size]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return nil, giterr.Protocol("pkt-line", fmt.Errorf("truncated packet: %w", err))
	}
	return r.buf, nil
}

// Encode writes payload as one data packet.
func Encode(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return giterr.Protocol("pkt-line", fmt.Errorf("payload of %d bytes exceeds %d", len(payload), MaxPayload))
	}
	if _, err := fmt.Fprintf(w, "%04x", len(payload)+lenSize); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// EncodeString writes s as one data packet.
func EncodeString(w io.Writer, s string) error {
	return Encode(w, []byte(s))
}

// Flush writes a flush packet.
func Flush(w io.Writer) error {
	_, err := w.Write(flushPkt)
	return err
}
