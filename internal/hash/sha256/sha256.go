// Package sha256 fingerprints entry identities with SHA-256.
package sha256

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hasher implements digest.Hasher. Each field is written with a length
// prefix, so ("ab", "c") and ("a", "bc") hash differently.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of the length-prefixed fields.
func (h *Hasher) Hash(fields ...string) (string, error) {
	d := sha256.New()
	var size [binary.MaxVarintLen64]byte
	for _, f := range fields {
		n := binary.PutUvarint(size[:], uint64(len(f)))
		d.Write(size[:n])
		d.Write([]byte(f))
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}
