package atrest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/yndnr/thingvault/pkg/crypto/adaptive"
)

var master = bytes.Repeat([]byte{7}, 32)

func TestTransform_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantName string
	}{
		{"plain", Options{}, "none"},
		{"compressed", Options{Compress: true}, "zstd"},
		{"encrypted", Options{MasterKey: master, Cipher: adaptive.CipherChaCha20}, "chacha20-poly1305"},
		{"both", Options{MasterKey: master, Cipher: adaptive.CipherAESGCM, Compress: true, Level: 1}, "zstd+aes-gcm"},
	}

	payloads := [][]byte{nil, []byte("x"), bytes.Repeat([]byte("compress me "), 500)}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.opts)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if tr.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", tr.Name(), tt.wantName)
			}

			for _, p := range payloads {
				stored, err := tr.Encode(p, []byte("repo/store/thing"))
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				if string(stored[:4]) != Magic {
					t.Errorf("missing magic")
				}
				if tr.Encrypted() && len(p) > 0 && bytes.Contains(stored, p) {
					t.Error("encrypted payload contains plaintext")
				}

				got, err := tr.Decode(stored, []byte("repo/store/thing"))
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if !bytes.Equal(got, p) {
					t.Errorf("Decode() = %d bytes, want %d", len(got), len(p))
				}
			}
		})
	}
}

func TestTransform_CompressionShrinks(t *testing.T) {
	tr, _ := New(Options{Compress: true})
	p := bytes.Repeat([]byte("a"), 10000)

	stored, _ := tr.Encode(p, nil)
	if len(stored) >= len(p)/10 {
		t.Errorf("compressed size = %d, expected much smaller than %d", len(stored), len(p))
	}
}

func TestTransform_AADBinding(t *testing.T) {
	tr, _ := New(Options{MasterKey: master})

	stored, _ := tr.Encode([]byte("secret"), []byte("repo/a/thing"))
	if _, err := tr.Decode(stored, []byte("repo/b/thing")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Decode() under another key err = %v, want ErrCorrupt", err)
	}
}

func TestTransform_MixedHistory(t *testing.T) {
	plain := Plain()
	old, _ := plain.Encode([]byte("written before encryption"), nil)

	tr, _ := New(Options{MasterKey: master, Compress: true})
	got, err := tr.Decode(old, nil)
	if err != nil || string(got) != "written before encryption" {
		t.Errorf("Decode(old) = (%q, %v)", got, err)
	}

	sealed, _ := tr.Encode([]byte("new"), nil)
	if _, err := plain.Decode(sealed, nil); !errors.Is(err, ErrNoKey) {
		t.Errorf("Decode() without key err = %v, want ErrNoKey", err)
	}
}

func TestTransform_DecodeCorrupt(t *testing.T) {
	tr := Plain()

	tests := []struct {
		name   string
		stored []byte
	}{
		{"too small", []byte{1, 2, 3}},
		{"bad magic", []byte("XXXX\x01\x00\x00data")},
		{"bad version", []byte("TVAR\x09\x00\x00data")},
		{"bad alg", []byte("TVAR\x01\x01\x09data")},
		{"bad zstd", []byte("TVAR\x01\x01\x01not zstd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tr.Decode(tt.stored, nil); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Decode() err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestNew_BadKey(t *testing.T) {
	if _, err := New(Options{MasterKey: []byte("short")}); err == nil {
		t.Error("New() with a short master key should fail")
	}
}
