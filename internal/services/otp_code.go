package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
)

const (
	codeMin  = 100000
	codeSpan = 900000
	saltSize = 16
)

// CodeGenerator produces six digit verification codes in [100000, 999999]
type CodeGenerator struct {
	random io.Reader
}

// NewCodeGenerator creates a generator backed by crypto/rand
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{random: rand.Reader}
}

// Generate returns a new code drawn uniformly from the six digit space
func (g *CodeGenerator) Generate() (string, error) {
	n, err := rand.Int(g.random, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}

// Hasher computes salted digests of verification codes.
// With a secret the digest is HMAC-SHA256(secret, code||salt), otherwise SHA-256(code||salt).
type Hasher struct {
	secret []byte
	random io.Reader
}

// NewHasher creates a hasher; an empty secret selects plain SHA-256
func NewHasher(secret string) *Hasher {
	h := &Hasher{random: rand.Reader}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// Salt returns 16 random bytes, hex encoded
func (h *Hasher) Salt() (string, error) {
	buf := make([]byte, saltSize)
	if _, err := io.ReadFull(h.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash returns the hex digest of code concatenated with salt
func (h *Hasher) Hash(code, salt string) string {
	if h.secret == nil {
		sum := sha256.Sum256([]byte(code + salt))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(code + salt))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches hashes code with salt and compares it to digest in constant time
func (h *Hasher) Matches(code, salt, digest string) bool {
	computed := h.Hash(code, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
