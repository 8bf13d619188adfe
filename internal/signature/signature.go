// Package signature verifies the HMAC proofs attached to gateway webhooks
// and client payment callbacks. It is the only trust boundary protecting
// order state from forgery, so it must run before any state mutation.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CallbackPayload builds the canonical byte string the gateway signs for a
// client-side payment callback.
func CallbackPayload(gatewayOrderID, paymentID string) []byte {
	return []byte(gatewayOrderID + "|" + paymentID)
}

// Sign computes the hex HMAC-SHA256 of payload under secret.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the hex HMAC-SHA256 of payload under secret.
// A missing secret or signature is always a failure. Comparison is
// constant-time.
func Verify(payload []byte, sig string, secret []byte) bool {
	if len(secret) == 0 || sig == "" {
		return false
	}

	supplied, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)

	return hmac.Equal(supplied, mac.Sum(nil))
}
