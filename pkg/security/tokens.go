package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const approvalTokenBytes = 32

// NewApprovalToken returns a random hex token for the emailed approval link
// and the digest that is stored in its place.
func NewApprovalToken() (token string, digest string, err error) {
	buf := make([]byte, approvalTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate approval token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, DigestToken(token), nil
}

// DigestToken hashes a raw token with blake2b-256. Lookups always go through
// the digest so a leaked table never exposes usable links.
func DigestToken(token string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// NewReference builds a human readable identifier such as TXN-1A2B3C4D.
func NewReference(prefix string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
