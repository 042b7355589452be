// Package oid provides the store's document identifier type and the codec
// that converts identifiers between their opaque internal form and a
// portable hex string form.
package oid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidHex is returned when a string is not a valid identifier encoding.
var ErrInvalidHex = errors.New("oid: invalid identifier hex")

// rawLen is the identifier size in bytes; its hex form is twice as long.
const rawLen = 12

// ID is the store's opaque document identifier: a 4-byte big-endian creation
// timestamp followed by 8 random bytes.
type ID [rawLen]byte

// NilID is the zero identifier.
var NilID ID

// NewID generates a new identifier with the current time.
func NewID() ID {
	return NewIDWithTime(time.Now())
}

// NewIDWithTime generates a new identifier with the given creation time.
func NewIDWithTime(t time.Time) ID {
	var id ID
	binary.BigEndian.PutUint32(id[:4], uint32(t.Unix()))
	if _, err := rand.Read(id[4:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("oid: rand.Read: %v", err))
	}
	return id
}

// FromHex parses the 24-character hex form of an identifier.
func FromHex(s string) (ID, error) {
	if !IsValidHex(s) {
		return NilID, ErrInvalidHex
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return NilID, ErrInvalidHex
	}
	return id, nil
}

// IsValidHex reports whether s matches the identifier grammar exactly:
// 24 hexadecimal characters, either case.
func IsValidHex(s string) bool {
	if len(s) != rawLen*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Hex returns the lowercase hex form of the identifier.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Time returns the creation time embedded in the identifier.
func (id ID) Time() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[:4])), 0)
}

// IsZero reports whether the identifier is the zero value.
func (id ID) IsZero() bool {
	return id == NilID
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return id.Hex()
}
