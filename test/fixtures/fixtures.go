package fixtures

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Builders for raw webhook delivery bodies, shaped like the real Cloud API.

const (
	BusinessPhone = "15550000000"
	PhoneNumberID = "phone-test-1"
)

func envelope(value map[string]any) []byte {
	payload := map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"id": "entry-test-1",
			"changes": []map[string]any{{
				"field": "messages",
				"value": value,
			}},
		}},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return b
}

// IncomingText builds a delivery carrying one inbound text message.
func IncomingText(wamid, from, name, body string, at time.Time) []byte {
	return envelope(map[string]any{
		"messaging_product": "whatsapp",
		"metadata": map[string]any{
			"display_phone_number": BusinessPhone,
			"phone_number_id":      PhoneNumberID,
		},
		"contacts": []map[string]any{{
			"wa_id":   from,
			"profile": map[string]any{"name": name},
		}},
		"messages": []map[string]any{{
			"from":      from,
			"id":        wamid,
			"timestamp": strconv.FormatInt(at.Unix(), 10),
			"type":      "text",
			"text":      map[string]any{"body": body},
		}},
	})
}

// StatusUpdate builds a delivery carrying one status callback.
func StatusUpdate(wamid, status, recipient string, at time.Time) []byte {
	return envelope(map[string]any{
		"messaging_product": "whatsapp",
		"metadata": map[string]any{
			"display_phone_number": BusinessPhone,
			"phone_number_id":      PhoneNumberID,
		},
		"statuses": []map[string]any{{
			"id":           wamid,
			"status":       status,
			"timestamp":    strconv.FormatInt(at.Unix(), 10),
			"recipient_id": recipient,
		}},
	})
}

// Sign computes the X-Hub-Signature-256 header value for a body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
