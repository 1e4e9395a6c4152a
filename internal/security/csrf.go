package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const HeaderCSRF = "X-CSRF-Token"

// CSRFKey is the cache key holding the CSRF digest of a session.
func CSRFKey(sessionID string) string {
	return "csrf:" + sessionID
}

// CSRFDigest binds a CSRF token to its session. Only the digest is stored.
func CSRFDigest(secret, sessionID, token string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	mac.Write([]byte{':'})
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func CheckCSRF(secret, sessionID, token, storedDigest string) bool {
	if token == "" || storedDigest == "" {
		return false
	}
	return hmac.Equal([]byte(CSRFDigest(secret, sessionID, token)), []byte(storedDigest))
}
