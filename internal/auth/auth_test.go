package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/mse/internal/auth"
)

func TestHashAndVerifyAPIKey(t *testing.T) {
	hash, err := auth.HashAPIKey("admin-bootstrap-key")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	ok, err := auth.VerifyAPIKey("admin-bootstrap-key", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.VerifyAPIKey("wrong-key", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyAPIKey_MalformedHash(t *testing.T) {
	_, err := auth.VerifyAPIKey("anything", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := mgr.IssueToken("subject-123", auth.RoleSubject)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-123", claims.SubjectID)
	assert.Equal(t, auth.RoleSubject, claims.Role)
}

func TestJWTValidateToken_RejectsGarbage(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	_, err = mgr.ValidateToken("not.a.jwt")
	assert.Error(t, err)
}

func TestJWTValidateToken_RejectsTokenFromAnotherManager(t *testing.T) {
	mgrA, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)
	mgrB, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	token, _, err := mgrA.IssueToken("subject-123", auth.RoleSubject)
	require.NoError(t, err)

	_, err = mgrB.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTValidateToken_RejectsExpiredToken(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", -time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.IssueToken("subject-123", auth.RoleSubject)
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestAtLeast(t *testing.T) {
	assert.True(t, auth.AtLeast(auth.RoleAdmin, auth.RoleSubject))
	assert.True(t, auth.AtLeast(auth.RoleSubject, auth.RoleSubject))
	assert.False(t, auth.AtLeast(auth.RoleSubject, auth.RoleAdmin))
}

func TestNewAdminAuthenticator_VerifiesBootstrapKey(t *testing.T) {
	a, err := auth.NewAdminAuthenticator("super-secret-admin-key")
	require.NoError(t, err)

	assert.True(t, a.Authenticate("super-secret-admin-key"))
	assert.False(t, a.Authenticate("wrong-key"))
}
