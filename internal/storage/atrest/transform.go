// Package atrest encodes thing bodies before a backend persists them.
//
// Stored payloads are framed:
//
//	"TVAR" | version | flags | alg | body
//
// flags records whether body is zstd-compressed and whether it is sealed
// with the process-wide AEAD. Compression happens before encryption. The
// AEAD binds the caller's additional data (the thing's composite key), so
// a payload copied to another key fails to decode.
package atrest

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/yndnr/thingvault/pkg/crypto/adaptive"
)

const (
	Magic   = "TVAR"
	Version = 1

	headerSize = 7
)

const (
	FlagCompressed = 1 << 0
	FlagEncrypted  = 1 << 1
)

const (
	AlgNone = 0
	AlgZstd = 1
)

// KeyPurpose is the HKDF purpose used to derive the at-rest key from the
// configured master key.
const KeyPurpose = "thingvault/at-rest/v1"

// maxDecodedSize bounds zstd output to guard against decompression bombs.
const maxDecodedSize = 256 << 20

// Errors returned by Decode.
var (
	ErrCorrupt = errors.New("atrest: corrupt payload")
	ErrNoKey   = errors.New("atrest: payload is encrypted but no key is configured")
)

// Options configures a Transform.
type Options struct {
	// MasterKey enables encryption when non-empty. The AEAD key is derived
	// from it with adaptive.DeriveKey.
	MasterKey []byte
	// Cipher pins the AEAD; empty selects the platform default.
	Cipher adaptive.CipherType
	// Compress enables zstd compression.
	Compress bool
	// Level is the zstd encoder level (1-4); zero selects the default.
	Level int
}

// Transform encodes and decodes stored payloads. It is safe for
// concurrent use.
type Transform struct {
	cipher   adaptive.Cipher
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// New builds a Transform from opts.
func New(opts Options) (*Transform, error) {
	t := &Transform{compress: opts.Compress}

	if len(opts.MasterKey) > 0 {
		key, err := adaptive.DeriveKey(opts.MasterKey, KeyPurpose)
		if err != nil {
			return nil, err
		}
		cipherType := opts.Cipher
		if cipherType == "" {
			cipherType = adaptive.Preferred()
		}
		c, err := adaptive.NewWithType(key, cipherType)
		if err != nil {
			return nil, err
		}
		t.cipher = c
	}

	level := zstd.SpeedDefault
	if opts.Level > 0 {
		level = zstd.EncoderLevel(opts.Level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("atrest: zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("atrest: zstd reader: %w", err)
	}
	t.encoder, t.decoder = enc, dec
	return t, nil
}

// Plain returns a Transform that only frames payloads.
func Plain() *Transform {
	t, _ := New(Options{})
	return t
}

// Encrypted reports whether payloads are sealed.
func (t *Transform) Encrypted() bool { return t.cipher != nil }

// Name describes the active pipeline, for logs.
func (t *Transform) Name() string {
	switch {
	case t.compress && t.cipher != nil:
		return "zstd+" + string(t.cipher.Type())
	case t.cipher != nil:
		return string(t.cipher.Type())
	case t.compress:
		return "zstd"
	default:
		return "none"
	}
}

// Encode frames plain for storage under aad.
func (t *Transform) Encode(plain, aad []byte) ([]byte, error) {
	var (
		flags byte
		alg   byte = AlgNone
	)
	body := plain

	if t.compress {
		body = t.encoder.EncodeAll(plain, nil)
		flags |= FlagCompressed
		alg = AlgZstd
	}

	if t.cipher != nil {
		sealed, err := t.cipher.Encrypt(body, aad)
		if err != nil {
			return nil, fmt.Errorf("atrest: encrypt: %w", err)
		}
		body = sealed
		flags |= FlagEncrypted
	}

	out := make([]byte, 0, headerSize+len(body))
	out = append(out, Magic...)
	out = append(out, Version, flags, alg)
	out = append(out, body...)
	return out, nil
}

// Decode reverses Encode. Payloads written with other options (for
// example before compression was enabled) still decode, as long as the
// key is available for encrypted ones.
func (t *Transform) Decode(stored, aad []byte) ([]byte, error) {
	if len(stored) < headerSize {
		return nil, fmt.Errorf("%w: too small for header", ErrCorrupt)
	}
	if string(stored[:4]) != Magic {
		return nil, fmt.Errorf("%w: invalid magic", ErrCorrupt)
	}
	if stored[4] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, stored[4])
	}

	flags, alg := stored[5], stored[6]
	body := stored[headerSize:]

	if flags&FlagEncrypted != 0 {
		if t.cipher == nil {
			return nil, ErrNoKey
		}
		plain, err := t.cipher.Decrypt(body, aad)
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt: %v", ErrCorrupt, err)
		}
		body = plain
	}

	if flags&FlagCompressed != 0 {
		if alg != AlgZstd {
			return nil, fmt.Errorf("%w: unsupported compression algorithm %d", ErrCorrupt, alg)
		}
		plain, err := t.decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
		}
		body = plain
	}

	return body, nil
}
