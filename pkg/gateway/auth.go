package gateway

import (
	"crypto/subtle"
	"strings"
)

// AuthHandler verifies the shared-secret token clients present, on the first
// WebSocket message or in the HTTP Authorization header.
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// VerifyToken compares a presented token against the shared secret in
// constant time.
func (a *AuthHandler) VerifyToken(token string) bool {
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(token)) == 1
}

// VerifyBearer verifies an "Authorization: Bearer <token>" header value.
func (a *AuthHandler) VerifyBearer(header string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return a.VerifyToken(strings.TrimPrefix(header, prefix))
}
