// Package obfuscate implements the keyless wire transform applied to every
// request and response body.
//
// It hides payloads from casual inspection and keeps them URL-safe. It is
// not encryption: anyone holding this package can reverse it. Trust comes
// from pkg/crypto/asym.
package obfuscate

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Version is the current frame format.
const Version byte = 1

// ErrMalformed is returned when a wire string cannot be decoded.
var ErrMalformed = errors.New("obfuscate: malformed payload")

var encoding = base64.RawURLEncoding

func mask(i int) byte {
	return byte(0xA5 ^ (i * 31))
}

// Obfuscate encodes plain for transit.
func Obfuscate(plain string) string {
	n := len(plain)
	frame := make([]byte, n+1)
	frame[0] = Version
	for i := 0; i < n; i++ {
		frame[i+1] = plain[n-1-i] ^ mask(i)
	}
	return encoding.EncodeToString(frame)
}

// Deobfuscate reverses Obfuscate. Surrounding whitespace and one pair of
// matching quotes are ignored, so JSON-quoted bodies decode as well.
func Deobfuscate(wire string) (string, error) {
	frame, err := encoding.DecodeString(trim(wire))
	if err != nil || len(frame) == 0 {
		return "", ErrMalformed
	}
	if frame[0] != Version {
		return "", ErrMalformed
	}

	body := frame[1:]
	n := len(body)
	plain := make([]byte, n)
	for i := 0; i < n; i++ {
		plain[n-1-i] = body[i] ^ mask(i)
	}
	return string(plain), nil
}

func trim(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
