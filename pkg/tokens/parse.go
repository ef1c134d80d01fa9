package tokens

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("tokens: invalid token")
	ErrExpired      = errors.New("tokens: token expired")
)

// AccessClaimsFromToken parses and verifies an access token. Access and
// refresh tokens are signed with different secrets and carry a kind claim,
// so the two kinds can never be substituted for each other.
func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return accessSecret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid || claims.Kind != KindAccess {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// RefreshClaimsFromToken parses and verifies a refresh token.
func RefreshClaimsFromToken(tokenStr string, refreshSecret []byte) (*RefreshClaims, error) {
	var claims RefreshClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return refreshSecret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid || claims.Kind != KindRefresh {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpired
	}
	return ErrInvalidToken
}
