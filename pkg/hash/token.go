package hash

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	// SecretBytes is the entropy of a session secret (256 bits).
	SecretBytes = 32
	// TokenLength is the length of the hex-encoded secret given to clients.
	TokenLength = SecretBytes * 2
)

// GenerateToken returns a new random session secret, hex encoded
func GenerateToken() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenHasher derives storage ids from client secrets with keyed BLAKE2b-256.
// The key (pepper) never leaves the server, so a leaked table of ids cannot be
// replayed or brute forced offline.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher builds a hasher keyed with pepper. An empty pepper yields an
// unkeyed hash, which is still one-way.
func NewTokenHasher(pepper string) *TokenHasher {
	var key []byte
	if pepper != "" {
		sum := blake2b.Sum256([]byte(pepper))
		key = sum[:]
	}
	return &TokenHasher{key: key}
}

// Hash returns the hex id under which the token's session is stored
func (h *TokenHasher) Hash(token string) string {
	// New256 only fails for keys longer than 64 bytes; key is at most 32.
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidTokenFormat reports whether token has the shape GenerateToken produces
func ValidTokenFormat(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
