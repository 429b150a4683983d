package domain

import (
	"encoding/json"
	"time"
)

// ExportState is the lifecycle of a persisted export request.
type ExportState string

const (
	ExportQueued    ExportState = "queued"
	ExportRunning   ExportState = "running"
	ExportSucceeded ExportState = "succeeded"
	ExportPartial   ExportState = "partial"
	ExportFailed    ExportState = "failed"
)

// Finished reports whether the request has a final result.
func (s ExportState) Finished() bool {
	return s == ExportSucceeded || s == ExportPartial || s == ExportFailed
}

// ExportMode records which path runs a request. Only async requests are
// claimed and requeued by the worker.
type ExportMode string

const (
	ExportModeSync  ExportMode = "sync"
	ExportModeAsync ExportMode = "async"
)

// ExportRecord is an export request as stored for asynchronous processing
// and later lookup. Result holds the encoded per-variant results.
type ExportRecord struct {
	ID         string
	UserID     string
	DesignID   string
	Variants   []Variant
	Format     ExportFormat
	Mode       ExportMode
	Status     ExportState
	Result     json.RawMessage
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// Request rebuilds the runnable request of a stored record.
func (r ExportRecord) Request() ExportRequest {
	return ExportRequest{DesignID: r.DesignID, Variants: r.Variants, Format: r.Format}
}
