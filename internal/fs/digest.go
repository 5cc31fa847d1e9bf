package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// Algorithm names a checksum function. A vault uses one algorithm for its
// whole life: stored checksums are plain hex digests.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// NewHasher returns a constructor for the hash of algo.
func NewHasher(algo Algorithm) (func() hash.Hash, error) {
	switch algo {
	case SHA256, "":
		return sha256.New, nil
	case BLAKE3:
		return func() hash.Hash { return blake3.New() }, nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm: %q", algo)
	}
}

// Digest hashes everything read from r.
func Digest(newHash func() hash.Hash, r io.Reader) (string, int64, error) {
	h := newHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
