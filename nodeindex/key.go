package nodeindex

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
)

// KeyVersion identifies the key encoding used by EncodeKey.  It is stored in
// the index metadata record and checked by Open.
const KeyVersion = 1

// KeySize is the length of an encoded node key.
const KeySize = 8

// metaKey holds index metadata.  Its length differs from KeySize, so it can
// never collide with a node key.
var metaKey = []byte("graphannot.meta")

// EncodeKey returns the store key for a node id: the id as a big-endian
// uint64.  Big-endian keys sort in id order.
func EncodeKey(id uint64) []byte {
	key := make([]byte, KeySize)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(key []byte) (uint64, error) {
	if len(key) != KeySize {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("nodeindex: key has %d bytes, want %d", len(key), KeySize))
	}
	return binary.BigEndian.Uint64(key), nil
}

type meta struct {
	version     byte
	fingerprint uint64
}

func (m meta) encode() []byte {
	buf := make([]byte, 9)
	buf[0] = m.version
	binary.BigEndian.PutUint64(buf[1:], m.fingerprint)
	return buf
}

func decodeMeta(buf []byte) (meta, error) {
	if len(buf) != 9 {
		return meta{}, errors.E(errors.Invalid, fmt.Sprintf("nodeindex: metadata record has %d bytes, want 9", len(buf)))
	}
	return meta{version: buf[0], fingerprint: binary.BigEndian.Uint64(buf[1:])}, nil
}
