package domain

import (
	"context"
	"time"
)

// UserRepository links design platform accounts to local users and keeps
// their OAuth credential.
type UserRepository interface {
	LinkUser(ctx context.Context, designUserID, teamID string) (string, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// ExportRepository persists export requests. Claim returns ErrNotFound when
// nothing is queued.
type ExportRepository interface {
	Create(ctx context.Context, rec *ExportRecord) error
	Claim(ctx context.Context) (*ExportRecord, error)
	Complete(ctx context.Context, id string, status ExportState, result []byte, errMsg string) error
	GetForUser(ctx context.Context, id, userID string) (*ExportRecord, error)
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
