package transport

import (
	"fmt"
	"net/http"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

// Service identifies one phase of the smart protocol. The numeric values match
// the host's action codes.
type Service int

const (
	UploadPackLs Service = iota + 1
	UploadPack
	ReceivePackLs
	ReceivePack
)

func (s Service) String() string {
	switch s {
	case UploadPackLs:
		return "upload-pack-ls"
	case UploadPack:
		return "upload-pack"
	case ReceivePackLs:
		return "receive-pack-ls"
	case ReceivePack:
		return "receive-pack"
	default:
		return fmt.Sprintf("service(%d)", int(s))
	}
}

// ParseService maps a service name as printed by String back to a Service.
func ParseService(name string) (Service, error) {
	for _, s := range []Service{UploadPackLs, UploadPack, ReceivePackLs, ReceivePack} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown service %q", name)
}

// Wire constants of the smart HTTP protocol.
const (
	uploadPackName  = "git-upload-pack"
	receivePackName = "git-receive-pack"

	lsPath = "/info/refs"

	uploadPackRequestType  = "application/x-git-upload-pack-request"
	uploadPackResultType   = "application/x-git-upload-pack-result"
	receivePackRequestType = "application/x-git-receive-pack-request"
	receivePackResultType  = "application/x-git-receive-pack-result"
)

// Descriptor is the fixed request shape of one Service.
type Descriptor struct {
	Service Service
	Method  string
	Path    string // appended to the repository URL
	Query   string // listing only
	Chunked bool   // request body uses chunked transfer encoding

	// RequestType and ResultType are sent as Content-Type and Accept when the
	// request carries a body.
	RequestType string
	ResultType  string
}

// Listing reports whether d is a reference listing (GET, no body).
func (d Descriptor) Listing() bool {
	return d.Method == http.MethodGet
}

// Describe returns the descriptor for s.
func Describe(s Service) (Descriptor, error) {
	switch s {
	case UploadPackLs:
		return Descriptor{
			Service:     s,
			Method:      http.MethodGet,
			Path:        lsPath,
			Query:       "service=" + uploadPackName,
			RequestType: uploadPackRequestType,
			ResultType:  uploadPackResultType,
		}, nil
	case UploadPack:
		return Descriptor{
			Service:     s,
			Method:      http.MethodPost,
			Path:        "/" + uploadPackName,
			RequestType: uploadPackRequestType,
			ResultType:  uploadPackResultType,
		}, nil
	case ReceivePackLs:
		return Descriptor{
			Service:     s,
			Method:      http.MethodGet,
			Path:        lsPath,
			Query:       "service=" + receivePackName,
			RequestType: receivePackRequestType,
			ResultType:  receivePackResultType,
		}, nil
	case ReceivePack:
		return Descriptor{
			Service:     s,
			Method:      http.MethodPost,
			Path:        "/" + receivePackName,
			Chunked:     true,
			RequestType: receivePackRequestType,
			ResultType:  receivePackResultType,
		}, nil
	}
	return Descriptor{}, giterr.Protocol("action", fmt.Errorf("unknown service %d", int(s)))
}
