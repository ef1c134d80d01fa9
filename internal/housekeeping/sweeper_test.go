package housekeeping

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
)

func newTestStore(t *testing.T) *repo.GormRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.RefreshRecord{}))
	return repo.New(db)
}

func seedRecord(t *testing.T, r *repo.GormRepo, ttl time.Duration, revoke bool) *models.RefreshRecord {
	t.Helper()

	rec := &models.RefreshRecord{
		RecordID:   uuid.NewString(),
		OwnerID:    uuid.New(),
		SecretHash: "hash-" + uuid.NewString(),
		ExpiresAt:  time.Now().Add(ttl),
	}
	require.NoError(t, r.CreateRefresh(context.Background(), rec))
	if revoke {
		require.NoError(t, r.Revoke(context.Background(), rec.RecordID, models.ReasonLogout))
	}
	return rec
}

func TestSweep_PurgesOnlyTerminalRecordsPastRetention(t *testing.T) {
	t.Parallel()

	r := newTestStore(t)
	purgeable := seedRecord(t, r, -72*time.Hour, true)
	liveRecord := seedRecord(t, r, time.Hour, false)
	recentRevoked := seedRecord(t, r, -time.Minute, true)

	s := NewSweeper(r, 24*time.Hour, slog.Default())
	s.sweep()

	_, err := r.Find(context.Background(), purgeable.RecordID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.Find(context.Background(), liveRecord.RecordID)
	assert.NoError(t, err)
	_, err = r.Find(context.Background(), recentRevoked.RecordID)
	assert.NoError(t, err)
}

func TestStart_SchedulesTheSweep(t *testing.T) {
	t.Parallel()

	s := NewSweeper(newTestStore(t), 24*time.Hour, slog.Default())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Equal(t, 1, s.scheduler.Len())
}

func TestNewSweeper_DefaultsRetention(t *testing.T) {
	t.Parallel()

	s := NewSweeper(newTestStore(t), 0, slog.Default())
	assert.Equal(t, 30*24*time.Hour, s.Retention)
}
