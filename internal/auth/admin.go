package auth

import "fmt"

// AdminAuthenticator verifies the single bootstrap admin API key
// configured via MSE_ADMIN_API_KEY against its Argon2id hash, computed
// once at startup so the raw key never lingers in memory longer than
// construction.
type AdminAuthenticator struct {
	hash string
}

// NewAdminAuthenticator hashes rawKey once. An empty rawKey disables
// admin-token issuance entirely — Authenticate then always reports false.
func NewAdminAuthenticator(rawKey string) (*AdminAuthenticator, error) {
	if rawKey == "" {
		return &AdminAuthenticator{}, nil
	}
	hash, err := HashAPIKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("auth: hash admin key: %w", err)
	}
	return &AdminAuthenticator{hash: hash}, nil
}

// Authenticate reports whether candidate matches the configured admin
// key. Runs the constant-time Argon2id comparison even when no admin key
// is configured, so the absence of MSE_ADMIN_API_KEY is not observable
// via response timing.
func (a *AdminAuthenticator) Authenticate(candidate string) bool {
	if a.hash == "" {
		DummyVerify()
		return false
	}
	ok, err := VerifyAPIKey(candidate, a.hash)
	return err == nil && ok
}
