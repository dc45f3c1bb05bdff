package hash

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Sum64 returns the canonical 64-bit identity hash of data.
func Sum64(data []byte) uint64 {
	sum := blake3.Sum256(data)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Sum64String is Sum64 over the UTF-8 bytes of s.
func Sum64String(s string) uint64 {
	return Sum64([]byte(s))
}
