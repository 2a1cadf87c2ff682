package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync"
	"time"
)

// Job IDs are ULIDs: 26-character Crockford Base32 strings with a millisecond
// timestamp prefix, so they sort by submission time.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	ulidMu  sync.Mutex
	lastMs  uint64
	lastSeq uint16
)

func generateULID() string {
	ulidMu.Lock()
	ms := uint64(time.Now().UnixMilli())
	if ms == lastMs {
		lastSeq++
	} else {
		lastMs, lastSeq = ms, 0
	}
	seq := lastSeq
	ulidMu.Unlock()

	var b [16]byte
	// 48-bit timestamp, 16-bit sequence, 64 random bits.
	binary.BigEndian.PutUint64(b[:8], ms<<16|uint64(seq))
	rand.Read(b[8:])
	return encodeCrockford(b)
}

func encodeCrockford(b [16]byte) string {
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	var out [26]byte
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = crockford[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// ValidJobID reports whether id looks like a generated job ID.
func ValidJobID(id string) bool {
	if len(id) != 26 {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune(crockford, c) {
			return false
		}
	}
	return true
}
