package asym

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/hybrid"
)

var scheme = hybrid.Kyber768X25519()

var encoding = base64.RawURLEncoding

// Errors returned by this package.
var (
	ErrInvalidKey        = errors.New("asym: invalid key")
	ErrInvalidCiphertext = errors.New("asym: invalid ciphertext")
	ErrBadSignature      = errors.New("asym: signature verification failed")
)

// PublicKey is the shareable half of a KeyPair.
type PublicKey struct {
	kemKey []byte
	sigKey ed25519.PublicKey
}

// String returns the wire form of the key.
func (p PublicKey) String() string {
	buf := make([]byte, 0, len(p.kemKey)+len(p.sigKey))
	buf = append(buf, p.kemKey...)
	buf = append(buf, p.sigKey...)
	return encoding.EncodeToString(buf)
}

// IsZero reports whether p holds no key material.
func (p PublicKey) IsZero() bool {
	return len(p.kemKey) == 0
}

// Equal reports whether p and other are the same key.
func (p PublicKey) Equal(other PublicKey) bool {
	return p.String() == other.String()
}

// ParsePublicKey decodes the wire form produced by PublicKey.String.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := encoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != scheme.PublicKeySize()+ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: public key is %d bytes", ErrInvalidKey, len(raw))
	}
	n := scheme.PublicKeySize()
	if _, err := scheme.UnmarshalBinaryPublicKey(raw[:n]); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return PublicKey{
		kemKey: raw[:n:n],
		sigKey: ed25519.PublicKey(raw[n:]),
	}, nil
}

// KeyPair holds both halves of an identity.
type KeyPair struct {
	Public PublicKey

	kemKey kem.PrivateKey
	sigKey ed25519.PrivateKey
}

// Generate creates a fresh key pair.
func Generate() (*KeyPair, error) {
	kemPub, kemPriv, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("asym: generate kem key: %w", err)
	}
	kemRaw, err := kemPub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sigPub, sigPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("asym: generate signing key: %w", err)
	}
	return &KeyPair{
		Public: PublicKey{kemKey: kemRaw, sigKey: sigPub},
		kemKey: kemPriv,
		sigKey: sigPriv,
	}, nil
}

// MarshalPrivate serializes the private halves. The output is secret.
func (kp *KeyPair) MarshalPrivate() ([]byte, error) {
	kemRaw, err := kp.kemKey.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(kemRaw)+ed25519.SeedSize)
	out = append(out, kemRaw...)
	out = append(out, kp.sigKey.Seed()...)
	return out, nil
}

// UnmarshalKeyPair restores a KeyPair from MarshalPrivate output.
func UnmarshalKeyPair(b []byte) (*KeyPair, error) {
	n := scheme.PrivateKeySize()
	if len(b) != n+ed25519.SeedSize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKey, len(b))
	}
	kemPriv, err := scheme.UnmarshalBinaryPrivateKey(b[:n])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	kemPub, err := kemPriv.Public().MarshalBinary()
	if err != nil {
		return nil, err
	}
	sigPriv := ed25519.NewKeyFromSeed(b[n:])
	return &KeyPair{
		Public: PublicKey{kemKey: kemPub, sigKey: sigPriv.Public().(ed25519.PublicKey)},
		kemKey: kemPriv,
		sigKey: sigPriv,
	}, nil
}
