// Package adaptive provides the symmetric AEAD used for data at rest.
//
// The cipher is chosen from the platform: AES-256-GCM where Go uses
// hardware AES (amd64, arm64), ChaCha20-Poly1305 elsewhere. Callers may pin
// a cipher explicitly with NewWithType when data must be readable across
// architectures; both ciphers use 32-byte keys.
//
// Ciphertext layout is nonce || sealed, so a Cipher is self-contained and
// safe for concurrent use.
//
// Keys are derived from a single master key per purpose with DeriveKey:
//
//	key, err := adaptive.DeriveKey(master, "thingvault/at-rest")
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
package adaptive
