package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/oklog/ulid/v2"
)

// DefaultLength is the default token length in bytes.
const DefaultLength = 32

// Well-known prefixes.
const (
	AppTokenPrefix     = "tvat_"
	StorageTokenPrefix = "tvst_"
	RepositoryIDPrefix = "tvrp-"
)

// Generate generates a cryptographically secure random token.
//
// The returned token is Base64 RawURL encoded for safe URL transmission.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a token with the specified byte length.
func GenerateWithLength(length int) (string, error) {
	bytes, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateBytes generates random bytes.
func GenerateBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

// WithPrefix generates a DefaultLength token carrying prefix.
func WithPrefix(prefix string) (string, error) {
	body, err := Generate()
	if err != nil {
		return "", err
	}
	return prefix + body, nil
}

// NewAppToken generates a fresh app token.
func NewAppToken() (string, error) {
	return WithPrefix(AppTokenPrefix)
}

// NewStorageToken generates a fresh storage token.
func NewStorageToken() (string, error) {
	return WithPrefix(StorageTokenPrefix)
}

// NewRepositoryID returns a new repository identifier.
//
// ulid.Make uses a process-wide monotonic entropy source, so identifiers
// generated in the same millisecond still sort in creation order.
func NewRepositoryID() string {
	return RepositoryIDPrefix + strings.ToLower(ulid.Make().String())
}

// IsSecret reports whether s looks like a token issued by this package.
func IsSecret(s string) bool {
	return strings.HasPrefix(s, AppTokenPrefix) || strings.HasPrefix(s, StorageTokenPrefix)
}

// Fingerprint returns a short, non-reversible tag for a token, suitable
// for log correlation.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:6])
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
