// Package wire defines the byte layouts idcache writes into a backend.
//
// There are three frames:
//
//	entry:  magic "IDCE" | ver(1) | kind(1) | vlen(u32 be) | payload(vlen)
//	stamp:  magic "IDCS" | ver(1) | version(u64 be) | expiresAt(i64 be, unix nanos, 0 = never) | vlen(u32 be) | payload(vlen)
//	list:   magic "IDCL" | ver(1) | n(u32 be) | (vlen(u32 be) | payload(vlen)) * n
//
// Entry frames carry the cache slot state (value, cached nil, tombstone).
// Stamp frames are used by byte stores that have no native concurrency token:
// the version doubles as the token and expiresAt enforces per-entry TTLs on
// stores that only have a global one. List frames hold the primary keys of
// a non-unique index.
//
// All decoders are strict: short input, wrong magic/version/kind and trailing
// bytes are reported as ErrCorrupt.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const version byte = 1

// Kind is the state stored in an entry frame.
type Kind byte

const (
	KindValue     Kind = 1
	KindNil       Kind = 2
	KindTombstone Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindNil:
		return "nil"
	case KindTombstone:
		return "tombstone"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

var (
	ErrCorrupt = errors.New("idcache: corrupt frame")

	magicEntry = [...]byte{'I', 'D', 'C', 'E'}
	magicStamp = [...]byte{'I', 'D', 'C', 'S'}
	magicList  = [...]byte{'I', 'D', 'C', 'L'}
)

const (
	entryHdr = 4 + 1 + 1 + 4
	stampHdr = 4 + 1 + 8 + 8 + 4
	listHdr  = 4 + 1 + 4
)

func hasMagic(b []byte, m [4]byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], m[:])
}

// EncodeEntry frames payload with the given kind. Tombstone and nil frames
// are expected to have an empty payload.
func EncodeEntry(kind Kind, payload []byte) []byte {
	buf := make([]byte, entryHdr+len(payload))
	copy(buf, magicEntry[:])
	buf[4] = version
	buf[5] = byte(kind)
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(payload)))
	copy(buf[entryHdr:], payload)
	return buf
}

// DecodeEntry returns the kind and payload of an entry frame. The payload
// aliases b.
func DecodeEntry(b []byte) (Kind, []byte, error) {
	if len(b) < entryHdr || !hasMagic(b, magicEntry) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	kind := Kind(b[5])
	switch kind {
	case KindValue, KindNil, KindTombstone:
	default:
		return 0, nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[6:10]))
	if vlen != len(b)-entryHdr {
		return 0, nil, ErrCorrupt
	}
	return kind, b[entryHdr:], nil
}

// Stamp is the decoded form of a stamp frame.
type Stamp struct {
	Version   uint64
	ExpiresAt int64 // unix nanos; 0 = never
	Payload   []byte
}

// Expired reports whether the stamp has expired at now (unix nanos).
func (s Stamp) Expired(now int64) bool {
	return s.ExpiresAt != 0 && now >= s.ExpiresAt
}

func EncodeStamp(s Stamp) []byte {
	buf := make([]byte, stampHdr+len(s.Payload))
	copy(buf, magicStamp[:])
	buf[4] = version
	binary.BigEndian.PutUint64(buf[5:13], s.Version)
	binary.BigEndian.PutUint64(buf[13:21], uint64(s.ExpiresAt))
	binary.BigEndian.PutUint32(buf[21:25], uint32(len(s.Payload)))
	copy(buf[stampHdr:], s.Payload)
	return buf
}

func DecodeStamp(b []byte) (Stamp, error) {
	if len(b) < stampHdr || !hasMagic(b, magicStamp) || b[4] != version {
		return Stamp{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[21:25]))
	if vlen != len(b)-stampHdr {
		return Stamp{}, ErrCorrupt
	}
	return Stamp{
		Version:   binary.BigEndian.Uint64(b[5:13]),
		ExpiresAt: int64(binary.BigEndian.Uint64(b[13:21])),
		Payload:   b[stampHdr:],
	}, nil
}

// EncodeList frames a sequence of payloads.
func EncodeList(items [][]byte) ([]byte, error) {
	total := listHdr
	for _, it := range items {
		if uint64(len(it)) > 0xFFFFFFFF {
			return nil, fmt.Errorf("idcache: list item too large: %d bytes", len(it))
		}
		total += 4 + len(it)
	}

	buf := make([]byte, 0, total)
	buf = append(buf, magicList[:]...)
	buf = append(buf, version)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(items)))
	for _, it := range items {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(it)))
		buf = append(buf, it...)
	}
	return buf, nil
}

// DecodeList returns the payloads of a list frame. Payloads alias b.
func DecodeList(b []byte) ([][]byte, error) {
	if len(b) < listHdr || !hasMagic(b, magicList) || b[4] != version {
		return nil, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[5:9]))
	off := listHdr

	// every item needs at least its 4 byte length; don't trust n for capacity
	if n < 0 || n > (len(b)-off)/4 {
		return nil, ErrCorrupt
	}
	items := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(b) {
			return nil, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}
		items = append(items, b[off:off+vlen])
		off += vlen
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}
