package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// CanonicalMessage joins the signed request facts. Any change to the body
// after signing, down to a single byte, produces a different message.
func CanonicalMessage(timestamp int64, method, path string, body []byte) []byte {
	header := fmt.Sprintf("%d\n%s\n%s\n", timestamp, method, path)
	msg := make([]byte, 0, len(header)+len(body))
	msg = append(msg, header...)
	msg = append(msg, body...)
	return msg
}

// SignRequest computes the base64 HMAC-SHA256 signature a caller is expected
// to send. Shared with tests and the provisioning docs.
func SignRequest(secret string, timestamp int64, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(CanonicalMessage(timestamp, method, path, body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a caller-supplied signature in constant time. It is
// a pure function; replay and freshness are someone else's job.
func VerifySignature(secret string, timestamp int64, method, path string, body []byte, signature string) bool {
	presented, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(CanonicalMessage(timestamp, method, path, body))
	return hmac.Equal(presented, mac.Sum(nil))
}
