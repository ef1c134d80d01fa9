package signer

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/hash"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/tokens"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	s, err := New([]byte("test-access-secret"), []byte("test-refresh-secret"), 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return s
}

func TestNew_BadSecrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		access  []byte
		refresh []byte
	}{
		{name: "no access secret", access: nil, refresh: []byte("r")},
		{name: "no refresh secret", access: []byte("a"), refresh: nil},
		{name: "neither", access: nil, refresh: nil},
		{name: "identical secrets", access: []byte("shared"), refresh: []byte("shared")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.access, tt.refresh, time.Minute, time.Hour)
			assert.ErrorIs(t, err, ErrMisconfigured)
		})
	}
}

func TestIssueAccess_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	user := &models.User{
		ID:    uuid.New(),
		Email: "member@example.com",
		Roles: []string{"member", "treasurer"},
	}

	token, exp, err := s.IssueAccess(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	claims, err := s.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.Roles, claims.Roles)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)
}

func TestIssueRefresh_BindsOwnerAndRecord(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	ownerID := uuid.New()
	recordID := uuid.NewString()

	token, secretHash, exp, err := s.IssueRefresh(ownerID, recordID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, hash.Sha256Hex(token), secretHash)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, 2*time.Second)

	claims, err := s.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, ownerID.String(), claims.Subject)
	assert.Equal(t, recordID, claims.ID)
	assert.NotEmpty(t, claims.Nonce, "refresh token must carry extra entropy")
}

func TestIssueRefresh_UniquePerCall(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	ownerID := uuid.New()
	recordID := uuid.NewString()

	_, hash1, _, err := s.IssueRefresh(ownerID, recordID)
	require.NoError(t, err)
	_, hash2, _, err := s.IssueRefresh(ownerID, recordID)
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "two issuances must never hash the same")
}

func TestVerify_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	user := &models.User{ID: uuid.New(), Email: "m@example.com", Roles: []string{"member"}}

	accessToken, _, err := s.IssueAccess(user)
	require.NoError(t, err)
	refreshToken, _, _, err := s.IssueRefresh(user.ID, uuid.NewString())
	require.NoError(t, err)

	_, err = s.VerifyAccess(refreshToken)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	_, err = s.VerifyRefresh(accessToken)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}

// The kind claim alone must block substitution: a token signed with the
// access secret but marked as a refresh token is not an access token.
func TestVerifyAccess_RejectsWrongKind(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)

	claims := tokens.AccessClaims{
		Kind: tokens.KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	mislabeled, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-access-secret"))
	require.NoError(t, err)

	_, err = s.VerifyAccess(mislabeled)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}

func TestVerifyAccess_Expired(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)

	claims := tokens.AccessClaims{
		Email: "m@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-access-secret"))
	require.NoError(t, err)

	_, err = s.VerifyAccess(expired)
	assert.ErrorIs(t, err, tokens.ErrExpired)
}

func TestVerifyAccess_WrongSecret(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)

	claims := tokens.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = s.VerifyAccess(forged)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}
