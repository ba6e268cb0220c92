// Package stream defines the byte stream the smart HTTP transport talks
// through, along with a plaintext TCP implementation.
//
// The HTTP layer only depends on the Stream interface, so a TLS capable
// stream can be dropped in without touching it. Capabilities a stream may not
// have (certificate inspection, proxying) are separate interfaces detected with
// a type assertion; their absence means "unsupported", not failure.
package stream

import "crypto/x509"

// Version is the stream contract version reported by Info.
const Version = 1

// Stream is a connectable, bidirectional byte stream.
type Stream interface {
	// Connect opens the underlying connection, replacing any open one.
	Connect() error

	// Read reads up to len(p) bytes. It returns io.EOF at end of stream.
	Read(p []byte) (int, error)

	// Write writes p and reports the number of bytes transferred.
	Write(p []byte) (int, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error

	// Free releases every resource held by the stream. The stream must not be
	// used afterwards.
	Free()

	// Info describes the stream's capabilities.
	Info() Info
}

// Info tags a stream with its capabilities.
type Info struct {
	Version      int
	Encrypted    bool
	ProxySupport bool
}

// CertificateProvider is implemented by streams that can expose the peer
// certificate.
type CertificateProvider interface {
	Certificate() (*x509.Certificate, error)
}

// ProxyOptions configures a proxied stream.
type ProxyOptions struct {
	URL string
}

// ProxySetter is implemented by streams that can be routed through a proxy.
type ProxySetter interface {
	SetProxy(opts ProxyOptions) error
}

// wrapper is implemented by streams that decorate another stream.
type wrapper interface {
	Unwrap() Stream
}

// capability returns the first stream in s's wrapper chain implementing T.
func capability[T any](s Stream) (T, bool) {
	for s != nil {
		if c, ok := s.(T); ok {
			return c, true
		}
		w, ok := s.(wrapper)
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	var zero T
	return zero, false
}

// AsCertificateProvider returns the certificate capability of s or of a
// stream it wraps.
func AsCertificateProvider(s Stream) (CertificateProvider, bool) {
	return capability[CertificateProvider](s)
}

// AsProxySetter returns the proxy capability of s or of a stream it wraps.
func AsProxySetter(s Stream) (ProxySetter, bool) {
	return capability[ProxySetter](s)
}

// SupportsCertificate reports whether s can expose a certificate.
func SupportsCertificate(s Stream) bool {
	_, ok := AsCertificateProvider(s)
	return ok
}

// SupportsProxy reports whether s can be proxied.
func SupportsProxy(s Stream) bool {
	_, ok := AsProxySetter(s)
	return ok
}

// Factory creates an unconnected stream for a host and port.
type Factory func(host string, port int) Stream
