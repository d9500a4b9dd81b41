package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier tagged with a short type prefix,
// e.g. "tsk_9f2c...". 12 random bytes keep IDs URL-friendly while
// leaving collisions out of the picture.
func NewID(prefix string) string {
	raw := make([]byte, 12)
	_, _ = rand.Read(raw)
	id := hex.EncodeToString(raw)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
