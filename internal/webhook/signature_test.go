package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	secret := "app-secret"

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, VerifySignature(body, sign(body, secret), secret))
	})

	t.Run("single byte body mutation flips result", func(t *testing.T) {
		header := sign(body, secret)
		mutated := append([]byte(nil), body...)
		mutated[0] ^= 0x01
		assert.False(t, VerifySignature(mutated, header, secret))
	})

	t.Run("single byte signature mutation flips result", func(t *testing.T) {
		header := []byte(sign(body, secret))
		last := header[len(header)-1]
		if last == 'a' {
			header[len(header)-1] = 'b'
		} else {
			header[len(header)-1] = 'a'
		}
		assert.False(t, VerifySignature(body, string(header), secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(body, sign(body, "other"), secret))
	})

	t.Run("missing prefix", func(t *testing.T) {
		header := sign(body, secret)
		assert.False(t, VerifySignature(body, header[len("sha256="):], secret))
	})

	t.Run("empty header", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "", secret))
	})

	t.Run("empty secret never verifies here", func(t *testing.T) {
		// The skip-when-unconfigured policy lives in the ingest pipeline,
		// not in VerifySignature itself.
		assert.False(t, VerifySignature(body, sign(body, ""), ""))
	})

	t.Run("garbage header does not panic", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "sha256=zzzz not hex", secret))
		assert.False(t, VerifySignature(nil, "sha256=", secret))
	})
}
