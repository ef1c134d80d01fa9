package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
)

// CreateRefresh inserts a new active record (login or rotation successor).
func (r *GormRepo) CreateRefresh(ctx context.Context, rec *models.RefreshRecord) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastUsedAt.IsZero() {
		rec.LastUsedAt = now
	}
	return r.DB.WithContext(ctx).Create(rec).Error
}

// FindActive returns the record only while it is rotatable. Revoked,
// expired and unknown records all come back as ErrNotFound; use Find when
// the true state is needed for audit logging.
func (r *GormRepo) FindActive(ctx context.Context, recordID string) (*models.RefreshRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var rec models.RefreshRecord
	err := r.DB.WithContext(ctx).
		Where("record_id = ? AND revoked_at IS NULL AND expires_at > ?", recordID, time.Now()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Find loads a record regardless of state.
func (r *GormRepo) Find(ctx context.Context, recordID string) (*models.RefreshRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var rec models.RefreshRecord
	err := r.DB.WithContext(ctx).Where("record_id = ?", recordID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Rotate atomically revokes oldRecordID and inserts its successor. The
// guarded UPDATE is the compare-and-swap: it only matches while the old
// record is still active, so of two racing calls exactly one sees a row
// affected. The loser gets ErrAlreadyRotated (or ErrNotFound if the record
// never existed). There is no window with two active records in the chain:
// revocation and insert commit together or not at all.
func (r *GormRepo) Rotate(ctx context.Context, oldRecordID string, next *models.RefreshRecord) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	now := time.Now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	if next.LastUsedAt.IsZero() {
		next.LastUsedAt = now
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RefreshRecord{}).
			Where("record_id = ? AND revoked_at IS NULL AND expires_at > ?", oldRecordID, now).
			Updates(map[string]any{
				"revoked_at":     now,
				"revoked_reason": models.ReasonRotated,
				"replaced_by":    next.RecordID,
				"last_used_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.RefreshRecord{}).
				Where("record_id = ?", oldRecordID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrAlreadyRotated
		}
		return tx.Create(next).Error
	})
}

// Revoke marks a single record revoked. Idempotent: a second call is a
// no-op and the original reason is kept.
func (r *GormRepo) Revoke(ctx context.Context, recordID, reason string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	return r.DB.WithContext(ctx).Model(&models.RefreshRecord{}).
		Where("record_id = ? AND revoked_at IS NULL", recordID).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		}).Error
}

// RevokeAllForOwner revokes every active record the owner has. Used for
// "log out everywhere" and for the conservative reuse-detection policy.
func (r *GormRepo) RevokeAllForOwner(ctx context.Context, ownerID uuid.UUID, reason string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	return r.DB.WithContext(ctx).Model(&models.RefreshRecord{}).
		Where("owner_id = ? AND revoked_at IS NULL", ownerID).
		Updates(map[string]any{
			"revoked_at":     time.Now(),
			"revoked_reason": reason,
		}).Error
}

// ListActiveForOwner returns the owner's live sessions, newest first.
func (r *GormRepo) ListActiveForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.RefreshRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var recs []models.RefreshRecord
	err := r.DB.WithContext(ctx).
		Where("owner_id = ? AND revoked_at IS NULL AND expires_at > ?", ownerID, time.Now()).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// PurgeExpiredRevoked deletes terminal-state records older than the
// retention cutoff. Only rows that are both revoked and expired are
// touched, so the sweep is safe to run alongside live traffic.
func (r *GormRepo) PurgeExpiredRevoked(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res := r.DB.WithContext(ctx).
		Where("revoked_at IS NOT NULL AND expires_at < ?", before).
		Delete(&models.RefreshRecord{})
	return res.RowsAffected, res.Error
}
