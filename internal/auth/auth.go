// Package auth derives and checks the shared room password digest.
package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"

	sha256 "github.com/minio/sha256-simd"
)

var ErrPasswordMismatch = errors.New("room password mismatch")

type Guard struct {
	salt string
}

func NewGuard(salt string) Guard {
	return Guard{salt: salt}
}

// Digest returns hex(sha256(salt + ":" + password)).
func (g Guard) Digest(password string) string {
	sum := sha256.Sum256([]byte(g.salt + ":" + password))
	return hex.EncodeToString(sum[:])
}

// Verify compares a freshly computed digest with the one stored on a room.
func (g Guard) Verify(stored string, digest string) error {
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
