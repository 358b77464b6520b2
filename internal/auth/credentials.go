// ABOUTME: Optional bcrypt password check applied by authenticate
// ABOUTME: With no users configured any username is accepted, as in demo deployments

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash keeps the unknown-user path as slow as the wrong-password path.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Credentials maps usernames to bcrypt password hashes.
type Credentials struct {
	hashes map[string]string
}

// NewCredentials copies the username -> bcrypt hash map.
func NewCredentials(users map[string]string) *Credentials {
	hashes := make(map[string]string, len(users))
	for name, hash := range users {
		hashes[name] = hash
	}
	return &Credentials{hashes: hashes}
}

// Enabled reports whether any users are configured.
func (c *Credentials) Enabled() bool {
	return c != nil && len(c.hashes) > 0
}

// Check verifies the password for username. It always succeeds when
// credentials are not enabled.
func (c *Credentials) Check(username, password string) error {
	if !c.Enabled() {
		return nil
	}
	hash, ok := c.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for the auth.users config map.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
