package signer

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/hash"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/tokens"
)

// nonceBytes gives every refresh token at least 256 bits of randomness on
// top of its uuid JTI, so the stored hash can serve as a unique key.
const nonceBytes = 32

var ErrMisconfigured = errors.New("signer: secrets missing or not distinct")

// Signer mints and verifies both credential kinds. It is stateless; all
// methods are safe for concurrent use.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func New(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*Signer, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrMisconfigured
	}
	// A shared secret would collapse the two token kinds into one trust
	// domain; refuse to start that way.
	if bytes.Equal(accessSecret, refreshSecret) {
		return nil, ErrMisconfigured
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Signer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

func (s *Signer) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Signer) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs a short-lived assertion of the user's identity and
// roles. Nothing is persisted; the token is valid until expiry regardless
// of later refresh-record state.
func (s *Signer) IssueAccess(u *models.User) (string, time.Time, error) {
	exp := time.Now().Add(s.accessTTL)
	claims := tokens.AccessClaims{
		Kind:  tokens.KindAccess,
		Email: u.Email,
		Roles: u.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(s.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefresh signs a long-lived token bound to a refresh record. It
// returns the token for the client and the digest to store server-side.
func (s *Signer) IssueRefresh(ownerID uuid.UUID, recordID string) (token, secretHash string, exp time.Time, err error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate refresh nonce: %w", err)
	}

	exp = time.Now().Add(s.refreshTTL)
	claims := tokens.RefreshClaims{
		Kind:  tokens.KindRefresh,
		Nonce: base64.RawURLEncoding.EncodeToString(nonce),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			ID:        recordID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(s.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, hash.Sha256Hex(signed), exp, nil
}

// VerifyAccess checks signature and expiry only; it never consults the
// record store.
func (s *Signer) VerifyAccess(token string) (*tokens.AccessClaims, error) {
	return tokens.AccessClaimsFromToken(token, s.accessSecret)
}

func (s *Signer) VerifyRefresh(token string) (*tokens.RefreshClaims, error) {
	return tokens.RefreshClaimsFromToken(token, s.refreshSecret)
}
