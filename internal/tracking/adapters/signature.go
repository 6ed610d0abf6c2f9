package adapters

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrBadSignature indicates a webhook signature check failed.
var ErrBadSignature = errors.New("webhook signature mismatch")

// VerifySignature checks the hex-encoded HMAC-SHA256 signature a
// provider sends alongside its webhook body. An empty configured key
// disables verification (local development).
func VerifySignature(body []byte, signature, key string) error {
	if key == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}
