package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Revocation reasons recorded on RefreshRecord. Once set they are never
// cleared or changed.
const (
	ReasonRotated       = "rotated"
	ReasonLogout        = "logout"
	ReasonLogoutAll     = "logout_all"
	ReasonReuseDetected = "reuse_detected"
	ReasonAdminRevoke   = "admin_revoke"
)

const RoleAdmin = "admin"

// User is the identity this subsystem authenticates. It is owned by the
// member service; here it is only ever read.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"  json:"email"`
	PasswordHash string    `gorm:"not null"              json:"-"`
	Roles        []string  `gorm:"serializer:json"       json:"roles"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RefreshRecord is the durable ledger entry backing one refresh token.
// RecordID is the public identifier carried in the token's JTI; the raw
// token is never stored, only its sha256 digest.
type RefreshRecord struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	RecordID      string     `gorm:"uniqueIndex;not null"     json:"record_id"`
	OwnerID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"owner_id"`
	SecretHash    string     `gorm:"uniqueIndex;not null"     json:"-"`
	UserAgent     string     `json:"user_agent,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty"`
	DeviceID      string     `json:"device_id,omitempty"`
	CreatedAt     time.Time  `gorm:"not null"                 json:"created_at"`
	LastUsedAt    time.Time  `gorm:"not null"                 json:"last_used_at"`
	ExpiresAt     time.Time  `gorm:"index;not null"           json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
	ReplacedBy    string     `json:"replaced_by,omitempty"`
}

// Active reports whether the record may still be rotated: not revoked and
// not past its expiry.
func (r *RefreshRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// DeviceInfo is optional per-session metadata kept for audit trails and the
// session-listing UI.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
}
