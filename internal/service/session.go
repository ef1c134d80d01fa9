package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/audit"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/signer"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/hash"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/logging"
)

// SessionService drives the refresh-credential state machine:
// ACTIVE -> ROTATED or ACTIVE -> REVOKED, both terminal. Rotation
// atomicity lives in the repo; this layer decides what a failed rotation
// means.
type SessionService struct {
	Repo   *repo.GormRepo
	Signer *signer.Signer
	Audit  audit.Emitter

	// RevokeAllOnReuse is the reuse-policy knob. When true (the default
	// wiring), any detected reuse revokes every active record the owner
	// has; when false only the replayed record stays dead.
	RevokeAllOnReuse bool
}

type SessionResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.User
}

func (s *SessionService) emit(ctx context.Context, ev audit.Event) {
	if s.Audit != nil {
		s.Audit.Emit(ctx, ev)
	}
}

// Login validates the long-term password, creates a fresh refresh record
// and issues both credentials.
func (s *SessionService) Login(ctx context.Context, email, password string, dev models.DeviceInfo) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")

	user, err := s.Repo.AuthenticateUser(ctx, email, password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) {
			l.Warn("login_failed", "reason", "invalid credentials")
			s.emit(ctx, audit.Event{Type: audit.EventAuthFailed, Reason: "invalid_credentials", UserAgent: dev.UserAgent, IPAddress: dev.IPAddress})
			return nil, repo.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		l.Warn("login_failed", "reason", "user inactive", "user_id", user.ID)
		s.emit(ctx, audit.Event{Type: audit.EventAuthFailed, OwnerID: user.ID.String(), Reason: "user_inactive"})
		return nil, ErrUserInactive
	}

	res, err := s.issueSession(ctx, user, dev)
	if err != nil {
		l.Error("login_failed", "error", err)
		return nil, err
	}

	l.Info("login_ok", "user_id", user.ID)
	s.emit(ctx, audit.Event{Type: audit.EventLogin, OwnerID: user.ID.String(), UserAgent: dev.UserAgent, IPAddress: dev.IPAddress})
	return res, nil
}

func (s *SessionService) issueSession(ctx context.Context, user *models.User, dev models.DeviceInfo) (*SessionResult, error) {
	recordID := uuid.NewString()
	refreshToken, secretHash, refreshExp, err := s.Signer.IssueRefresh(user.ID, recordID)
	if err != nil {
		return nil, err
	}

	rec := &models.RefreshRecord{
		RecordID:   recordID,
		OwnerID:    user.ID,
		SecretHash: secretHash,
		UserAgent:  dev.UserAgent,
		IPAddress:  dev.IPAddress,
		DeviceID:   dev.DeviceID,
		ExpiresAt:  refreshExp,
	}
	if err := s.Repo.CreateRefresh(ctx, rec); err != nil {
		return nil, err
	}

	accessToken, accessExp, err := s.Signer.IssueAccess(user)
	if err != nil {
		return nil, err
	}

	return &SessionResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		User:         user,
	}, nil
}

// Refresh rotates a refresh credential. Replay of an already-rotated token
// and losing a rotation race are both treated as reuse: under normal
// single-client usage (clients coalesce their refreshes) neither should
// happen, so the conservative response is to kill the owner's sessions.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string, dev models.DeviceInfo) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.refresh")

	claims, err := s.Signer.VerifyRefresh(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "reason", "invalid token", "error", err)
		s.emit(ctx, audit.Event{Type: audit.EventAuthFailed, Reason: "invalid_refresh_token", UserAgent: dev.UserAgent, IPAddress: dev.IPAddress})
		return nil, ErrInvalidToken
	}

	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	recordID := claims.ID

	rec, err := s.Repo.FindActive(ctx, recordID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Signature is valid but the record is gone or terminal: the
			// token was used before. This is the reuse signal.
			return nil, s.handleReuse(ctx, ownerID, recordID)
		}
		return nil, err
	}

	if rec.SecretHash != hash.Sha256Hex(refreshToken) {
		l.Warn("refresh_failed", "reason", "secret hash mismatch", "record_id", recordID)
		s.emit(ctx, audit.Event{Type: audit.EventAuthFailed, OwnerID: ownerID.String(), RecordID: recordID, Reason: "secret_hash_mismatch"})
		return nil, ErrInvalidToken
	}

	user, err := s.Repo.FindUserByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		l.Warn("refresh_failed", "reason", "user inactive", "user_id", ownerID)
		s.emit(ctx, audit.Event{Type: audit.EventAuthFailed, OwnerID: ownerID.String(), Reason: "user_inactive"})
		return nil, ErrUserInactive
	}

	newRecordID := uuid.NewString()
	newToken, newHash, newExp, err := s.Signer.IssueRefresh(ownerID, newRecordID)
	if err != nil {
		return nil, err
	}
	next := &models.RefreshRecord{
		RecordID:   newRecordID,
		OwnerID:    ownerID,
		SecretHash: newHash,
		UserAgent:  dev.UserAgent,
		IPAddress:  dev.IPAddress,
		DeviceID:   dev.DeviceID,
		ExpiresAt:  newExp,
	}

	if err := s.Repo.Rotate(ctx, recordID, next); err != nil {
		if errors.Is(err, repo.ErrAlreadyRotated) || errors.Is(err, repo.ErrNotFound) {
			// Lost the compare-and-swap: someone else rotated this record
			// between FindActive and here. Same policy as replay.
			return nil, s.handleReuse(ctx, ownerID, recordID)
		}
		return nil, err
	}

	accessToken, accessExp, err := s.Signer.IssueAccess(user)
	if err != nil {
		return nil, err
	}

	l.Info("refresh_ok", "user_id", ownerID, "record_id", recordID, "replaced_by", newRecordID)
	s.emit(ctx, audit.Event{Type: audit.EventRefreshRotated, OwnerID: ownerID.String(), RecordID: recordID, UserAgent: dev.UserAgent, IPAddress: dev.IPAddress})

	return &SessionResult{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		AccessExp:    accessExp,
		RefreshExp:   newExp,
		User:         user,
	}, nil
}

func (s *SessionService) handleReuse(ctx context.Context, ownerID uuid.UUID, recordID string) error {
	l := logging.FromContext(ctx).With("svc", "session.refresh")

	reason := "unknown_record"
	if old, err := s.Repo.Find(ctx, recordID); err == nil {
		switch {
		case old.RevokedAt != nil:
			reason = old.RevokedReason
		case !old.ExpiresAt.After(time.Now()):
			reason = "expired"
		default:
			reason = "lost_rotation_race"
		}
	}
	l.Warn("refresh_reuse_detected", "user_id", ownerID, "record_id", recordID, "record_state", reason)
	s.emit(ctx, audit.Event{Type: audit.EventReuseDetected, OwnerID: ownerID.String(), RecordID: recordID, Reason: reason})

	if s.RevokeAllOnReuse {
		if err := s.Repo.RevokeAllForOwner(ctx, ownerID, models.ReasonReuseDetected); err != nil {
			return err
		}
	} else {
		if err := s.Repo.Revoke(ctx, recordID, models.ReasonReuseDetected); err != nil {
			return err
		}
	}
	return ErrRevokedOrReused
}

// Logout revokes the record behind the presented token. It never reports
// an authentication failure: logging out with a stale or garbage token
// still leaves the caller logged out.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "session.logout")

	claims, err := s.Signer.VerifyRefresh(refreshToken)
	if err != nil {
		l.Info("logout_with_invalid_token")
		return nil
	}

	if err := s.Repo.Revoke(ctx, claims.ID, models.ReasonLogout); err != nil {
		l.Error("logout_revoke_failed", "record_id", claims.ID, "error", err)
		return err
	}

	l.Info("logout_ok", "record_id", claims.ID)
	s.emit(ctx, audit.Event{Type: audit.EventLogout, OwnerID: claims.Subject, RecordID: claims.ID})
	return nil
}

// LogoutAll revokes every active record the owner has.
func (s *SessionService) LogoutAll(ctx context.Context, ownerID uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "session.logout_all")

	if err := s.Repo.RevokeAllForOwner(ctx, ownerID, models.ReasonLogoutAll); err != nil {
		l.Error("logout_all_failed", "user_id", ownerID, "error", err)
		return err
	}

	l.Info("logout_all_ok", "user_id", ownerID)
	s.emit(ctx, audit.Event{Type: audit.EventLogoutAll, OwnerID: ownerID.String()})
	return nil
}

// ListSessions returns ownerID's active sessions. Callers may only address
// their own unless they hold the admin role.
func (s *SessionService) ListSessions(ctx context.Context, caller *models.User, ownerID uuid.UUID) ([]models.RefreshRecord, error) {
	if caller.ID != ownerID && !caller.HasRole(models.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.Repo.ListActiveForOwner(ctx, ownerID)
}

// RevokeSession revokes one of ownerID's sessions, with the same ownership
// rule as ListSessions.
func (s *SessionService) RevokeSession(ctx context.Context, caller *models.User, ownerID uuid.UUID, recordID string) error {
	if caller.ID != ownerID && !caller.HasRole(models.RoleAdmin) {
		return ErrForbidden
	}

	rec, err := s.Repo.Find(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return ErrForbidden
	}

	reason := models.ReasonLogout
	if caller.ID != ownerID {
		reason = models.ReasonAdminRevoke
	}
	if err := s.Repo.Revoke(ctx, recordID, reason); err != nil {
		return err
	}

	s.emit(ctx, audit.Event{Type: audit.EventSessionRevoked, OwnerID: ownerID.String(), RecordID: recordID, Reason: reason})
	return nil
}
