package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// opTimeout is the ceiling on a single store operation. A caller whose
// context already carries an earlier deadline keeps it.
const opTimeout = 5 * time.Second

// GormRepo is the durable side of the subsystem: the refresh-record ledger
// and read-only access to member identities. All mutation of refresh state
// goes through the guarded updates below, so it stays correct when several
// service instances share one database.
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// opCtx bounds one store operation so a stalled database fails the request
// instead of hanging it.
func opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}
