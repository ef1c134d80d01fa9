package tokens

import "github.com/golang-jwt/jwt/v5"

// Kind values carried in the typ claim. Verification checks the kind on
// top of the per-kind secret, so the two token kinds stay non-substitutable
// even under a misconfigured shared secret.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// AccessClaims is the payload of a short-lived access token. It is verified
// purely by signature and expiry; no store lookup is involved.
type AccessClaims struct {
	Kind  string   `json:"typ,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. The JTI is the
// public record identifier; Nonce carries 32 bytes of randomness so the
// signed token has enough entropy to be hashed and stored as a unique key.
type RefreshClaims struct {
	Kind  string `json:"typ,omitempty"`
	Nonce string `json:"nce,omitempty"`
	jwt.RegisteredClaims
}

func (c AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
