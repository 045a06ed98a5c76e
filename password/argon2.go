// Package password hashes and verifies credentials with argon2id,
// encoded in PHC string format so parameters travel with the hash.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
	minPassBytes         = 8
)

// ErrHashMalformed is returned when a stored hash cannot be parsed.
// Verification against a malformed hash is an error, not a mismatch, so
// callers can tell data corruption apart from a wrong password.
var ErrHashMalformed = errors.New("malformed password hash")

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the RFC 9106 low-memory recommendation.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords with a fixed parameter set.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a Hasher. Parameters below the
// enforced floors are rejected rather than silently raised.
func NewHasher(params Params) (*Hasher, error) {
	switch {
	case params.Memory < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KiB")
	case params.Time < 1:
		return nil, errors.New("password: time must be >= 1")
	case params.Parallelism < 1:
		return nil, errors.New("password: parallelism must be >= 1")
	case params.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case params.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: params}, nil
}

// Hash derives a PHC-encoded argon2id hash with a fresh random salt.
// Password bytes are used exactly as provided, no normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", fmt.Errorf("password must be at least %d bytes", minPassBytes)
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt,
		h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. The comparison is
// constant time over the derived key.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt,
		parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker
// parameters than the Hasher's current ones.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return h.params.Memory > parsed.memory ||
		h.params.Time > parsed.time ||
		h.params.Parallelism > parsed.parallelism ||
		h.params.KeyLength != uint32(len(parsed.key)), nil
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrHashMalformed
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrHashMalformed
	}

	var parsed phcHash
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrHashMalformed
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return nil, ErrHashMalformed
			}
			parsed.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < 1 {
				return nil, ErrHashMalformed
			}
			parsed.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < 1 {
				return nil, ErrHashMalformed
			}
			parsed.parallelism = uint8(v)
		default:
			return nil, ErrHashMalformed
		}
	}
	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, ErrHashMalformed
	}

	parsed.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(parsed.salt)) < minSaltLength {
		return nil, ErrHashMalformed
	}
	parsed.key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.key) == 0 {
		return nil, ErrHashMalformed
	}

	return &parsed, nil
}
