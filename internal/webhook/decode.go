package webhook

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// DecodeError reports a payload that could not be turned into a Payload:
// bytes that are not valid UTF-8, or JSON that does not parse.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook decode: %s: %v", e.Reason, e.Err)
	}
	return "webhook decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses raw webhook body bytes into a Payload. The bytes are checked
// for UTF-8 validity before parsing; json.Unmarshal operates on the raw bytes
// directly, so 4-byte sequences (emoji) survive byte-exact. There is no
// intermediate lossy string conversion anywhere on this path.
func Decode(body []byte) (*Payload, error) {
	if !utf8.Valid(body) {
		return nil, &DecodeError{Reason: "body is not valid UTF-8"}
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	return &p, nil
}
