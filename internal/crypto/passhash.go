// Package crypto hashes and verifies account passwords with Argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Params holds Argon2id cost settings and the salt length.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams is used by the server for stored credentials.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

var errEmptyPassword = errors.New("crypto: empty password")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewCredential derives a hash for password under a freshly generated salt.
func (p Params) NewCredential(password string) (hash, salt []byte, err error) {
	if password == "" {
		return nil, nil, errEmptyPassword
	}
	salt, err = RandBytes(p.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return p.Hash(password, salt), salt, nil
}

// Hash returns the Argon2id key for password and salt.
func (p Params) Hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// Verify reports whether password matches the stored hash and salt.
func (p Params) Verify(password string, salt, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(got, expected) == 1
}
