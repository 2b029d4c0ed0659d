package security

import (
	"testing"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	body := []byte(`{"app_code":"zombie-arena","player_count":4}`)
	timestamp := int64(1756500000)

	signature := SignRequest(secret, timestamp, "POST", "/v1/auth/game/authorize", body)

	if !VerifySignature(secret, timestamp, "POST", "/v1/auth/game/authorize", body, signature) {
		t.Error("VerifySignature() = false, want true for a freshly signed request")
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	body := []byte(`{"app_code":"zombie-arena","player_count":4}`)
	timestamp := int64(1756500000)
	signature := SignRequest(secret, timestamp, "POST", "/v1/auth/game/authorize", body)

	// Flip every byte position one at a time; the signature must fail for
	// each single-byte alteration.
	for i := range body {
		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[i] ^= 0x01

		if VerifySignature(secret, timestamp, "POST", "/v1/auth/game/authorize", tampered, signature) {
			t.Errorf("VerifySignature() accepted body with byte %d flipped", i)
		}
	}
}

func TestVerifySignature_Mismatches(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	body := []byte(`{"app_code":"zombie-arena","player_count":4}`)
	timestamp := int64(1756500000)
	signature := SignRequest(secret, timestamp, "POST", "/v1/auth/game/authorize", body)

	tests := []struct {
		name      string
		secret    string
		timestamp int64
		method    string
		path      string
		signature string
	}{
		{"wrong secret", "ffffffffffffffffffffffffffffffff", timestamp, "POST", "/v1/auth/game/authorize", signature},
		{"wrong timestamp", secret, timestamp + 1, "POST", "/v1/auth/game/authorize", signature},
		{"wrong method", secret, timestamp, "PUT", "/v1/auth/game/authorize", signature},
		{"wrong path", secret, timestamp, "POST", "/v1/auth/game/cancel", signature},
		{"garbage signature", secret, timestamp, "POST", "/v1/auth/game/authorize", "not base64!!"},
		{"empty signature", secret, timestamp, "POST", "/v1/auth/game/authorize", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(tt.secret, tt.timestamp, tt.method, tt.path, body, tt.signature) {
				t.Error("VerifySignature() = true, want false")
			}
		})
	}
}

func TestCanonicalMessage_FieldBoundaries(t *testing.T) {
	// Moving a trailing byte between fields must change the message.
	a := SignRequest("s", 1, "POST", "/v1/x", []byte("ab"))
	b := SignRequest("s", 1, "POST", "/v1/xa", []byte("b"))
	if a == b {
		t.Error("signatures collide across field boundaries")
	}
}
