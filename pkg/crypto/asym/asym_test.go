package asym

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func mustGenerate(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return kp
}

func TestPublicKeyRoundTrip(t *testing.T) {
	kp := mustGenerate(t)

	s := kp.Public.String()
	if strings.ContainsAny(s, ",+/=") {
		t.Errorf("public key %q is not comma-safe base64url", s)
	}

	parsed, err := ParsePublicKey(s)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if !parsed.Equal(kp.Public) {
		t.Error("parsed key differs from original")
	}
}

func TestParsePublicKeyInvalid(t *testing.T) {
	kp := mustGenerate(t)
	s := kp.Public.String()

	for _, in := range []string{"", "not base64!", s[:len(s)-10]} {
		if _, err := ParsePublicKey(in); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParsePublicKey(%.20q) err = %v, want ErrInvalidKey", in, err)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	kp := mustGenerate(t)

	for _, msg := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{0xff}, 4096)} {
		ct, err := Encrypt(kp.Public, msg)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if strings.Contains(ct, ",") {
			t.Error("ciphertext must not contain a comma")
		}

		pt, err := Decrypt(kp, ct)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(pt, msg) {
			t.Errorf("Decrypt() = %x, want %x", pt, msg)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	alice := mustGenerate(t)
	bob := mustGenerate(t)

	ct, err := Encrypt(alice.Public, []byte("for alice"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(bob, ct); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt() with wrong key err = %v, want ErrInvalidCiphertext", err)
	}
	if _, err := Decrypt(alice, "short"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt(short) err = %v, want ErrInvalidCiphertext", err)
	}
}

func TestSignVerify(t *testing.T) {
	kp := mustGenerate(t)
	other := mustGenerate(t)

	sig := Sign(kp, "message")
	if !Verify(kp.Public, "message", sig) {
		t.Error("Verify() = false for a valid signature")
	}
	if Verify(kp.Public, "messagE", sig) {
		t.Error("Verify() = true for a modified message")
	}
	if Verify(other.Public, "message", sig) {
		t.Error("Verify() = true for the wrong key")
	}
	if Verify(kp.Public, "message", "garbage!") {
		t.Error("Verify() = true for a malformed signature")
	}
	if Verify(PublicKey{}, "message", sig) {
		t.Error("Verify() = true for a zero key")
	}
}

func TestMarshalPrivate(t *testing.T) {
	kp := mustGenerate(t)

	raw, err := kp.MarshalPrivate()
	if err != nil {
		t.Fatalf("MarshalPrivate() error = %v", err)
	}
	restored, err := UnmarshalKeyPair(raw)
	if err != nil {
		t.Fatalf("UnmarshalKeyPair() error = %v", err)
	}
	if !restored.Public.Equal(kp.Public) {
		t.Error("restored public key differs")
	}

	ct, _ := Encrypt(kp.Public, []byte("durable"))
	pt, err := Decrypt(restored, ct)
	if err != nil || string(pt) != "durable" {
		t.Errorf("Decrypt() with restored key = (%q, %v)", pt, err)
	}
	if !Verify(kp.Public, "m", Sign(restored, "m")) {
		t.Error("restored key should produce valid signatures")
	}

	if _, err := UnmarshalKeyPair(raw[:10]); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("UnmarshalKeyPair(short) err = %v, want ErrInvalidKey", err)
	}
}

func TestEncryptAndSign(t *testing.T) {
	server := mustGenerate(t)
	client := mustGenerate(t)

	sealed, err := EncryptAndSign(client.Public, server, []byte("tvst_token,pubkey"))
	if err != nil {
		t.Fatalf("EncryptAndSign() error = %v", err)
	}
	if strings.Count(sealed, ",") != 1 {
		t.Errorf("sealed %q should contain exactly one comma", sealed)
	}

	pt, err := VerifyAndDecrypt(server.Public, client, sealed)
	if err != nil {
		t.Fatalf("VerifyAndDecrypt() error = %v", err)
	}
	if string(pt) != "tvst_token,pubkey" {
		t.Errorf("VerifyAndDecrypt() = %q", pt)
	}

	if _, err := VerifyAndDecrypt(client.Public, client, sealed); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong signer err = %v, want ErrBadSignature", err)
	}
	if _, err := VerifyAndDecrypt(server.Public, client, "nocomma"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("missing comma err = %v, want ErrInvalidCiphertext", err)
	}
}
