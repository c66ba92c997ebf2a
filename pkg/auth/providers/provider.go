package providers

import "context"

// AuthProvider verifies ID tokens issued by the identity provider. Token
// issuance happens outside this service.
type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

// TokenClaims is the subset of verified token claims the engine consumes.
type TokenClaims struct {
	UID string `json:"uid"`
}
