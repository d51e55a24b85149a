package services

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCodeGeneratorImpl_Generate(t *testing.T) {
	g := &CodeGeneratorImpl{cost: bcrypt.MinCost}

	t.Run("produces digits of the requested length", func(t *testing.T) {
		code, hash, err := g.Generate(6)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != 6 {
			t.Errorf("expected 6 digits, got %d", len(code))
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Errorf("expected only digits, got %q", code)
				break
			}
		}
		if strings.Contains(hash, code) {
			t.Error("hash must not contain the plaintext code")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		code, hash, err := g.Generate(8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !g.Compare(hash, code) {
			t.Error("expected the generated code to match its hash")
		}
		if g.Compare(hash, "00000000") && code != "00000000" {
			t.Error("wrong code must not match")
		}
	})

	t.Run("rejects non-positive length", func(t *testing.T) {
		if _, _, err := g.Generate(0); err == nil {
			t.Error("expected an error for length 0")
		}
	})
}
