package domain

import (
	"errors"
	"strings"

	"github.com/yndnr/thingvault/pkg/crypto/asym"
)

// ErrMalformedSealed is returned by ParseSealed for input without a
// signature part.
var ErrMalformedSealed = errors.New("domain: malformed sealed payload")

// Sealed is a payload encrypted for one party and signed by another.
type Sealed struct {
	Signature string
	Payload   string
}

// String returns the wire form "signature,payload".
func (s Sealed) String() string {
	return s.Signature + "," + s.Payload
}

// ParseSealed splits the wire form on its first comma.
func ParseSealed(s string) (Sealed, error) {
	sig, payload, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok || sig == "" || payload == "" {
		return Sealed{}, ErrMalformedSealed
	}
	return Sealed{Signature: sig, Payload: payload}, nil
}

// KeyHolder is an entity that owns a key pair and takes part in the
// encrypt-and-sign layer.
type KeyHolder interface {
	// PublicKey returns the holder's public key.
	PublicKey() asym.PublicKey

	// SealFor encrypts plaintext for peer and signs it as the holder.
	SealFor(peer asym.PublicKey, plaintext []byte) (Sealed, error)

	// Open verifies that signer produced sealed and decrypts it with the
	// holder's private key.
	Open(sealed Sealed, signer asym.PublicKey) ([]byte, error)
}

// keyHolder implements KeyHolder over an asym.KeyPair.
type keyHolder struct {
	keys *asym.KeyPair
}

func (h keyHolder) PublicKey() asym.PublicKey {
	return h.keys.Public
}

func (h keyHolder) SealFor(peer asym.PublicKey, plaintext []byte) (Sealed, error) {
	ct, err := asym.Encrypt(peer, plaintext)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Signature: asym.Sign(h.keys, ct), Payload: ct}, nil
}

func (h keyHolder) Open(sealed Sealed, signer asym.PublicKey) ([]byte, error) {
	if !asym.Verify(signer, sealed.Payload, sealed.Signature) {
		return nil, asym.ErrBadSignature
	}
	return asym.Decrypt(h.keys, sealed.Payload)
}
