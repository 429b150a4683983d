package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/sqlinline"
)

// ExportRepositoryPG implements domain.ExportRepository on the
// export_requests table.
type ExportRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewExportRepository creates a new export request repository.
func NewExportRepository(sql infra.SQLExecutor) *ExportRepositoryPG {
	return &ExportRepositoryPG{sql: sql}
}

// Create inserts rec. A missing ID is generated, Status defaults to queued and
// Mode to async; CreatedAt is filled from the database.
func (r *ExportRepositoryPG) Create(ctx context.Context, rec *domain.ExportRecord) error {
	if rec == nil {
		return errors.New("repo: export record is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.ExportQueued
	}
	if rec.Mode == "" {
		rec.Mode = domain.ExportModeAsync
	}
	variants, err := json.Marshal(rec.Variants)
	if err != nil {
		return fmt.Errorf("repo: encode variants: %w", err)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertExportRequest,
		rec.ID,
		rec.UserID,
		rec.DesignID,
		variants,
		string(rec.Format),
		string(rec.Status),
		string(rec.Mode),
	)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return fmt.Errorf("repo: insert export request: %w", err)
	}
	return nil
}

// Claim moves the oldest queued request to running and returns it. Rows
// locked by another worker are skipped.
func (r *ExportRepositoryPG) Claim(ctx context.Context) (*domain.ExportRecord, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QClaimExportRequest)
	var (
		rec      domain.ExportRecord
		id, user uuid.UUID
		variants []byte
		format   string
	)
	if err := row.Scan(&id, &user, &rec.DesignID, &variants, &format, &rec.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: claim export request: %w", err)
	}
	rec.ID = id.String()
	rec.UserID = user.String()
	rec.Format = domain.ExportFormat(format)
	rec.Status = domain.ExportRunning
	rec.Mode = domain.ExportModeAsync
	if err := json.Unmarshal(variants, &rec.Variants); err != nil {
		return &rec, fmt.Errorf("repo: decode variants of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// Complete stores the final status and result of a request.
func (r *ExportRepositoryPG) Complete(ctx context.Context, id string, status domain.ExportState, result []byte, errMsg string) error {
	if !status.Finished() {
		return fmt.Errorf("repo: %q is not a final export state", status)
	}
	var payload any
	if len(result) > 0 {
		payload = result
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteExportRequest, id, string(status), payload, errMsg)
	if err != nil {
		return fmt.Errorf("repo: complete export request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetForUser fetches a request owned by userID.
func (r *ExportRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.ExportRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectExportRequest, id, userID)
	var (
		rec      domain.ExportRecord
		rid      uuid.UUID
		variants []byte
		format   string
		status   string
		result   []byte
	)
	if err := row.Scan(&rid, &rec.DesignID, &variants, &format, &status, &result, &rec.Error, &rec.CreatedAt, &rec.FinishedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get export request: %w", err)
	}
	rec.ID = rid.String()
	rec.UserID = userID
	rec.Format = domain.ExportFormat(format)
	rec.Status = domain.ExportState(status)
	if err := json.Unmarshal(variants, &rec.Variants); err != nil {
		return nil, fmt.Errorf("repo: decode variants of %s: %w", rec.ID, err)
	}
	if len(result) > 0 {
		rec.Result = json.RawMessage(result)
	}
	return &rec, nil
}

// RequeueStale returns async requests running for longer than olderThan to
// the queue, recovering work of workers that died mid request. Sync requests
// belong to their HTTP caller and are never requeued.
func (r *ExportRepositoryPG) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QRequeueStaleExportRequests, int(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("repo: requeue stale export requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.ExportRepository = (*ExportRepositoryPG)(nil)
