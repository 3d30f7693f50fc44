package auth

import "crypto/subtle"

// SecretMatches reports whether a request may proceed under the optional
// shared booking secret. An empty configured secret disables the check.
func SecretMatches(configured, provided string) bool {
	if configured == "" {
		return true
	}
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}
