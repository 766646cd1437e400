// Package md5 provides MD5 hashing utilities.
package md5

import (
	"crypto/md5" //nolint:gosec // digests are dedup keys, not security material
	"encoding/hex"
)

// Hasher computes hex MD5 digests. The merge stages use these as fallback
// dedup keys for records without an identity field; MD5 keeps the keys
// byte-compatible with ledgers produced by earlier crawls.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (Hasher) Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
