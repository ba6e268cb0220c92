package pktline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

// noRefsName stands in for the ref list of an empty repository.
const noRefsName = "capabilities^{}"

// RefDiscovery is the result of ref discovery.
type RefDiscovery struct {
	Service      string              // service name
	Refs         map[string]ObjectID // ref name -> object ID
	Names        []string            // ref names in advertised order
	Capabilities []string            // server capabilities
}

// ParseAdvertisement parses the body of an info/refs response:
//
//	# service=<name>
//	flush
//	<oid> <ref>\0<capabilities>
//	<oid> <ref>
//	...
//	flush
func ParseAdvertisement(r io.Reader) (*RefDiscovery, error) {
	pr := NewReader(r)

	line, err := pr.ReadPacket()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, giterr.Protocol("ref advertisement", errors.New("empty ref advertisement"))
		}
		return nil, err
	}
	text := strings.TrimSuffix(string(line), "\n")
	if !strings.HasPrefix(text, "# service=") {
		return nil, giterr.Protocol("ref advertisement", fmt.Errorf("invalid service advertisement: %q", text))
	}

	discovery := &RefDiscovery{
		Service: strings.TrimPrefix(text, "# service="),
		Refs:    make(map[string]ObjectID),
	}

	// some servers omit the flush after the service line
	line, err = pr.ReadPacket()
	if err != nil {
		return nil, unexpectedEnd(err)
	}
	if line == nil {
		if line, err = pr.ReadPacket(); err != nil {
			return nil, unexpectedEnd(err)
		}
	}

	for first := true; line != nil; first = false {
		if err := discovery.addRef(line, first); err != nil {
			return nil, err
		}
		if line, err = pr.ReadPacket(); err != nil {
			return nil, unexpectedEnd(err)
		}
	}

	return discovery, nil
}

func (d *RefDiscovery) addRef(line []byte, first bool) error {
	line = bytes.TrimSuffix(line, []byte("\n"))

	if first {
		if i := bytes.IndexByte(line, 0); i >= 0 {
			d.Capabilities = strings.Fields(string(line[i+1:]))
			line = line[:i]
		}
	}

	hexID, name, ok := strings.Cut(string(line), " ")
	if !ok || name == "" {
		return giterr.Protocol("ref advertisement", fmt.Errorf("invalid ref line: %q", line))
	}
	oid, err := ParseObjectID(hexID)
	if err != nil {
		return err
	}
	if first && name == noRefsName && oid.IsZero() {
		return nil
	}
	if _, seen := d.Refs[name]; !seen {
		d.Names = append(d.Names, name)
	}
	d.Refs[name] = oid
	return nil
}

func unexpectedEnd(err error) error {
	if errors.Is(err, io.EOF) {
		return giterr.Protocol("ref advertisement", errors.New("missing flush packet"))
	}
	return err
}
