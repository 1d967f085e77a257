package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskCredentialID keeps enough of an id to correlate log lines without
// logging a redeemable secret.
func MaskCredentialID(id string) string {
	if len(id) <= 8 {
		return "********"
	}
	return id[:8] + "-****"
}
