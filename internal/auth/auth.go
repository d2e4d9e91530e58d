// Package auth is the identity-provider boundary. The core only ever sees a
// stable user id and an eligibility flag; credential issuance and verification
// live behind the Verifier interface.
package auth

import "strings"

type Identity struct {
	UserID   uint64
	Eligible bool
}

type Verifier interface {
	Verify(token string) (Identity, error)
}

// SubprotocolPrefix carries the token on WebSocket handshakes, where browsers
// cannot set an Authorization header.
const SubprotocolPrefix = "Bearer."

// TokenFromSubprotocols extracts the bearer token from the client's offered
// WebSocket subprotocols. Returns the matched protocol so the handshake can
// echo it back.
func TokenFromSubprotocols(protocols []string) (token, matched string, ok bool) {
	for _, p := range protocols {
		if strings.HasPrefix(p, SubprotocolPrefix) {
			return p[len(SubprotocolPrefix):], p, true
		}
	}
	return "", "", false
}

// TokenFromHeader extracts the bearer token from an Authorization header.
func TokenFromHeader(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):]), true
	}
	return "", false
}
