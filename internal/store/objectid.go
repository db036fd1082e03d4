package store

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"time"
)

// Record ids are 24 hex characters: 4 bytes of unix seconds followed by
// 8 random bytes. Roughly time-ordered, collision-safe for a single writer.

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// NewID returns a fresh store-assigned record id.
func NewID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(b[4:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ValidID reports whether s is a well-formed record id.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}
