package adaptive

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the key length accepted by every cipher in this package.
const KeySize = 32

// DeriveKey derives a KeySize key for purpose from master using
// HKDF-SHA256. Distinct purposes yield independent keys.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) < 16 {
		return nil, fmt.Errorf("%w: master key must be at least 16 bytes", ErrInvalidKeySize)
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ParseKey decodes a base64 master key as found in configuration. Both
// standard and URL alphabets are accepted, with or without padding.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("adaptive: key is not valid base64")
}
