// Package internal holds helpers shared across authcore packages that
// are not part of the public API.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is 16 random bytes, rendered as 22 chars of base64url.
type SessionID [16]byte

// NewSessionID draws a fresh id from crypto/rand.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes a string produced by String.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}
