// Package auth implements the shared-secret gate in front of uploads.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// OpenMode is the ALLOWED_PASSWORDS value that disables authorization.
const OpenMode = "open"

// ErrUnauthorized is returned for a missing or unknown secret.
var ErrUnauthorized = errors.New("unauthorized")

// Gate checks secrets against an allow-list. Entries may be plain text or
// bcrypt hashes.
type Gate struct {
	open   bool
	plain  [][]byte
	hashed [][]byte
}

// NewGate parses a comma-separated allow-list. The literal "open" disables
// checks entirely. Blank entries are ignored, so an empty list rejects
// everything.
func NewGate(allowList string) *Gate {
	if strings.TrimSpace(allowList) == OpenMode {
		return &Gate{open: true}
	}

	g := &Gate{}
	for _, entry := range strings.Split(allowList, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if isBcryptHash(entry) {
			g.hashed = append(g.hashed, []byte(entry))
		} else {
			g.plain = append(g.plain, []byte(entry))
		}
	}
	return g
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Open reports whether the gate admits every request.
func (g *Gate) Open() bool {
	return g.open
}

// Size returns the number of configured secrets.
func (g *Gate) Size() int {
	return len(g.plain) + len(g.hashed)
}

// Check returns ErrUnauthorized unless secret matches an allow-list entry
// or the gate is open.
func (g *Gate) Check(secret string) error {
	if g.open {
		return nil
	}
	if secret == "" {
		return ErrUnauthorized
	}

	candidate := []byte(secret)
	matched := 0
	// Compare against every plain entry so timing does not reveal which one matched.
	for _, allowed := range g.plain {
		matched |= subtle.ConstantTimeCompare(candidate, allowed)
	}
	if matched == 1 {
		return nil
	}

	for _, hash := range g.hashed {
		if bcrypt.CompareHashAndPassword(hash, candidate) == nil {
			return nil
		}
	}
	return ErrUnauthorized
}

// HashSecret returns a bcrypt hash suitable for ALLOWED_PASSWORDS.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
