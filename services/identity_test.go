package services

import (
	"testing"
)

func TestParseSessionIdentity(t *testing.T) {
	operatorID := "a2b4c6d8-1234-4abc-9def-0123456789ab"

	t.Run("Valid identity", func(t *testing.T) {
		identity, err := ParseSessionIdentity(operatorID + "_1756500000_0123456789abcdef")
		if err != nil {
			t.Fatalf("ParseSessionIdentity() error = %v", err)
		}
		if identity.OperatorID != operatorID {
			t.Errorf("OperatorID = %q, want %q", identity.OperatorID, operatorID)
		}
		if identity.IssuedAt != 1756500000 {
			t.Errorf("IssuedAt = %d, want 1756500000", identity.IssuedAt)
		}
		if identity.Nonce != "0123456789abcdef" {
			t.Errorf("Nonce = %q", identity.Nonce)
		}
	})

	t.Run("Longer nonce accepted", func(t *testing.T) {
		_, err := ParseSessionIdentity(operatorID + "_1756500000_0123456789abcdef0123456789abcdef")
		if err != nil {
			t.Errorf("ParseSessionIdentity() error = %v, want nil for 32-char nonce", err)
		}
	})

	malformed := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no separators", "justonestring"},
		{"one separator", operatorID + "_1756500000"},
		{"short nonce", operatorID + "_1756500000_0123456789abcde"},
		{"non-hex nonce", operatorID + "_1756500000_0123456789abcdeg"},
		{"non-numeric timestamp", operatorID + "_notatime_0123456789abcdef"},
		{"negative timestamp", operatorID + "_-17565_0123456789abcdef"},
		{"empty operator", "_1756500000_0123456789abcdef"},
		{"trailing separator", operatorID + "_1756500000_"},
	}

	for _, tt := range malformed {
		t.Run("Malformed "+tt.name, func(t *testing.T) {
			if _, err := ParseSessionIdentity(tt.raw); err == nil {
				t.Errorf("ParseSessionIdentity(%q) expected error", tt.raw)
			}
		})
	}
}
