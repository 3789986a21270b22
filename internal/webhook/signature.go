package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const signaturePrefix = "sha256="

// VerifySignature checks the x-hub-signature-256 header against an
// HMAC-SHA256 of the raw body. The header format is "sha256=<hex>".
// It never panics; any malformed input simply fails verification.
// Whether an absent secret skips verification is the caller's policy,
// not decided here.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || len(header) <= len(signaturePrefix) {
		return false
	}
	if header[:len(signaturePrefix)] != signaturePrefix {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header[len(signaturePrefix):]))
}
