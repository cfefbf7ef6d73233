package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/thingvault/pkg/token"
)

// App and storage tokens are capabilities. They are masked wherever they
// appear as a string value.
var tokenPrefixes = []string{token.AppTokenPrefix, token.StorageTokenPrefix}

// Values of attributes whose key contains one of these are dropped.
var secretKeyParts = []string{
	"password",
	"secret",
	"private_key",
	"encryption_key",
	"admin_token",
	"credential",
	"authorization",
}

const redacted = "[redacted]"

// redactAttr is the slog ReplaceAttr hook. slog calls it for every
// non-group attribute, including those nested in groups.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	if masked, ok := MaskToken(v); ok {
		return slog.String(a.Key, masked)
	}
	if v != "" && secretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

// MaskToken shortens a session token to its prefix and last four
// characters. ok is false when v is not a token.
func MaskToken(v string) (masked string, ok bool) {
	for _, prefix := range tokenPrefixes {
		body, found := strings.CutPrefix(v, prefix)
		if !found {
			continue
		}
		if len(body) <= 8 {
			return prefix + "****", true
		}
		return prefix + "****" + body[len(body)-4:], true
	}
	return v, false
}

func secretKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
