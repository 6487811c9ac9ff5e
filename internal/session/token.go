package session

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DomainSession separates session token digests from every other hash in
// the system. The version suffix allows a future algorithm change.
const DomainSession = "tenantrpc/session/v1"

const (
	tokenPrefix  = "tr1."
	tokenEntropy = 32
)

var tokenBodyLen = base64.RawURLEncoding.EncodedLen(tokenEntropy)

// newToken reads 32 bytes of entropy and encodes them as an opaque token.
func newToken(rand io.Reader) (string, error) {
	buf := make([]byte, tokenEntropy)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// wellFormed reports whether token has the shape newToken produces. It is a
// cheap filter before any store lookup.
func wellFormed(token string) bool {
	body, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok || len(body) != tokenBodyLen {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}

// Digest returns the value stored for token.
// Format: hex(SHA256(DomainSession + 0x00 + token))
func Digest(token string) string {
	return hashWithDomain(DomainSession, []byte(token))
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// sessionID is the loggable identifier of a session: a digest prefix, never
// the token.
func sessionID(digest string) string {
	if len(digest) < 16 {
		return digest
	}
	return digest[:16]
}

// HashPassword returns a bcrypt hash of password at cost. A cost of zero
// uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// NormalizeEmail is the canonical directory key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
