package asym

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/thingvault/pkg/crypto/adaptive"
	"golang.org/x/crypto/hkdf"
)

const kdfInfo = "thingvault/asym/v1"

// Encrypt seals plaintext so that only the holder of pub's private half
// can read it. Output is kemCiphertext || nonce || sealed, base64url.
func Encrypt(pub PublicKey, plaintext []byte) (string, error) {
	pk, err := scheme.UnmarshalBinaryPublicKey(pub.kemKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	kemCt, secret, err := scheme.Encapsulate(pk)
	if err != nil {
		return "", fmt.Errorf("asym: encapsulate: %w", err)
	}
	c, err := dem(secret)
	if err != nil {
		return "", err
	}
	sealed, err := c.Encrypt(plaintext, kemCt)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(append(kemCt, sealed...)), nil
}

// Decrypt opens a ciphertext produced by Encrypt for kp.Public.
func Decrypt(kp *KeyPair, ciphertext string) ([]byte, error) {
	raw, err := encoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	n := scheme.CiphertextSize()
	if len(raw) < n {
		return nil, ErrInvalidCiphertext
	}
	kemCt := raw[:n]
	secret, err := scheme.Decapsulate(kp.kemKey, kemCt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	c, err := dem(secret)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.Decrypt(raw[n:], kemCt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return plaintext, nil
}

func dem(secret []byte) (adaptive.Cipher, error) {
	key := make([]byte, adaptive.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(kdfInfo)), key); err != nil {
		return nil, err
	}
	return adaptive.NewWithType(key, adaptive.CipherChaCha20)
}

// Sign signs message with kp's signing key.
func Sign(kp *KeyPair, message string) string {
	return encoding.EncodeToString(ed25519.Sign(kp.sigKey, []byte(message)))
}

// Verify reports whether signature is a valid signature of message by pub.
func Verify(pub PublicKey, message, signature string) bool {
	if len(pub.sigKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := encoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return ed25519.Verify(pub.sigKey, []byte(message), sig)
}

// EncryptAndSign encrypts plaintext for peer and signs the ciphertext as
// signer. It returns "signature,ciphertext".
func EncryptAndSign(peer PublicKey, signer *KeyPair, plaintext []byte) (string, error) {
	ct, err := Encrypt(peer, plaintext)
	if err != nil {
		return "", err
	}
	return Sign(signer, ct) + "," + ct, nil
}

// VerifyAndDecrypt checks a "signature,ciphertext" pair against signer and
// decrypts it with recipient.
func VerifyAndDecrypt(signer PublicKey, recipient *KeyPair, sealed string) ([]byte, error) {
	sig, ct, ok := strings.Cut(strings.TrimSpace(sealed), ",")
	if !ok {
		return nil, ErrInvalidCiphertext
	}
	if !Verify(signer, ct, sig) {
		return nil, ErrBadSignature
	}
	return Decrypt(recipient, ct)
}
