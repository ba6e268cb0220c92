// Package transport provides the HTTP smart subtransport for Git protocol communication.
//
// This package speaks Git's smart HTTP protocol directly over a byte stream
// from the stream package. It supports:
//
//   - Reference listing (GET info/refs?service=git-upload-pack / git-receive-pack)
//   - Pack exchange (POST git-upload-pack with a Content-Length body,
//     POST git-receive-pack with a chunked body)
//   - Redirect following, bounded by Options.MaxRedirects
//   - Plain http URLs only; there is no TLS, proxy or authentication support
//
// Example usage:
//
//	// Create the subtransport
//	t := transport.New(transport.Options{})
//	defer t.Free()
//
//	// List remote refs
//	s, err := t.Action("http://example.com/repo.git", transport.UploadPackLs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	advertisement, err := io.ReadAll(s)
//
// Each call to Action opens a fresh connection and returns a stream for one
// request/response cycle. Writes form the request body and reads return the
// response body; the request is sent at the latest on the first read.
package transport
