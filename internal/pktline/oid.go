package pktline

import (
	"encoding/hex"
	"fmt"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

// ObjectID is a SHA-1 object name as advertised by the server.
type ObjectID [20]byte

// String returns the hexadecimal form of the ObjectID.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the all-zero name servers use for "no object".
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// ParseObjectID parses a 40 character hexadecimal object name.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != hex.EncodedLen(len(id)) {
		return id, giterr.Protocol("object id", fmt.Errorf("invalid object ID length: expected 40, got %d", len(s)))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, giterr.Protocol("object id", fmt.Errorf("invalid hex string: %w", err))
	}
	return id, nil
}
