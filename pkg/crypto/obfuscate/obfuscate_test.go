package obfuscate

import (
	"errors"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"OK",
		"OK,tvat_abc",
		"ERROR,3,Incorrect app token",
		"héllo, wörld ✓",
		strings.Repeat("0123456789", 100),
	}

	for _, plain := range tests {
		wire := Obfuscate(plain)
		if strings.ContainsAny(wire, "+/=,") {
			t.Errorf("Obfuscate(%q) = %q contains non URL-safe characters", plain, wire)
		}
		if plain != "" && strings.Contains(wire, plain) {
			t.Errorf("Obfuscate(%q) leaks plaintext", plain)
		}

		got, err := Deobfuscate(wire)
		if err != nil {
			t.Fatalf("Deobfuscate(%q) error = %v", wire, err)
		}
		if got != plain {
			t.Errorf("Deobfuscate(Obfuscate(%q)) = %q", plain, got)
		}
	}
}

func TestDeobfuscateTrimsQuotes(t *testing.T) {
	wire := Obfuscate("payload")
	for _, in := range []string{
		`"` + wire + `"`,
		`'` + wire + `'`,
		"  " + wire + "\n",
		" \"" + wire + "\" ",
	} {
		got, err := Deobfuscate(in)
		if err != nil || got != "payload" {
			t.Errorf("Deobfuscate(%q) = (%q, %v), want (payload, nil)", in, got, err)
		}
	}
}

func TestDeobfuscateMalformed(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"empty", ""},
		{"quotes only", `""`},
		{"bad base64", "!!!"},
		{"unknown version", encoding.EncodeToString([]byte{9, 1, 2})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Deobfuscate(tt.wire); !errors.Is(err, ErrMalformed) {
				t.Errorf("Deobfuscate(%q) err = %v, want ErrMalformed", tt.wire, err)
			}
		})
	}
}

func TestObfuscateDeterministic(t *testing.T) {
	if Obfuscate("abc") != Obfuscate("abc") {
		t.Error("Obfuscate should be deterministic")
	}
	if Obfuscate("abc") == Obfuscate("abd") {
		t.Error("different inputs should encode differently")
	}
}
