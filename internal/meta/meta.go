// Package meta encodes the sidecar metadata record kept next to each cached
// key: {lifetime, createdAt, updatedAt}. The format is fixed-length binary
// with strict validation; anything that does not parse exactly is ErrCorrupt
// and gets rewritten by the cell layer.
package meta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("cellar: corrupt metadata record")
	magic4     = [...]byte{'C', 'E', 'L', 'M'}
)

// Forever marks a record that never goes stale.
const Forever time.Duration = -1

// Record is one cached key's lifecycle state. CreatedAt is set once and
// never changed; UpdatedAt moves on every value write; Lifetime is
// overwritten whenever a caller rebinds the key with a different lifetime.
type Record struct {
	Lifetime  time.Duration // Forever => never stale
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stale reports whether the record's value has outlived its lifetime at now.
func (r Record) Stale(now time.Time) bool {
	return r.Lifetime != Forever && now.Sub(r.UpdatedAt) > r.Lifetime
}

// size: magic(4) | ver(1) | lifetime(i64 be, ns) | created(i64 be, unix ns) | updated(i64 be, unix ns)
const recordSize = 4 + 1 + 8 + 8 + 8

func Encode(r Record) []byte {
	b := make([]byte, recordSize)
	copy(b, magic4[:])
	b[4] = version
	binary.BigEndian.PutUint64(b[5:], uint64(int64(r.Lifetime)))
	binary.BigEndian.PutUint64(b[13:], uint64(r.CreatedAt.UnixNano()))
	binary.BigEndian.PutUint64(b[21:], uint64(r.UpdatedAt.UnixNano()))
	return b
}

func Decode(b []byte) (Record, error) {
	if len(b) != recordSize || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Record{}, ErrCorrupt
	}
	life := time.Duration(int64(binary.BigEndian.Uint64(b[5:])))
	if life < 0 && life != Forever {
		return Record{}, ErrCorrupt
	}
	return Record{
		Lifetime:  life,
		CreatedAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[13:]))),
		UpdatedAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[21:]))),
	}, nil
}
