// Package turncred derives short-lived TURN credentials with the
// coturn REST static-auth-secret scheme — adapted from the teacher's
// root-level generateTurnCredentials in its signaling-server main.go: an
// HMAC-SHA1 of "expiry:username" keyed by a shared secret, base64-encoded
// as the password, with "expiry:username" itself as the username.
package turncred

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"
)

// Generate returns a (username, password) pair valid until ttl from now,
// as required by coturn's static-auth-secret REST API.
func Generate(secret, user string, ttl time.Duration) (username, password string) {
	expires := time.Now().Add(ttl).Unix()
	username = fmt.Sprintf("%d:%s", expires, user)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}
