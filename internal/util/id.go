// Package util holds small helpers shared across packages.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 128-bit random identifier in hex. A non-empty prefix
// is prepended with an underscore so tokens stay recognizable in logs,
// e.g. "rft_3f2a..." for refresh tokens.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("util: crypto/rand unavailable: " + err.Error())
	}
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
