package domain

import "strings"

// JobKind enumerates the asynchronous job types offered by the design API.
type JobKind string

const (
	JobKindResize JobKind = "resize"
	JobKindExport JobKind = "export"
)

// JobStatus enumerates the normalized job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further polling can change the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job is one remote asynchronous unit of work as last observed by a poll.
// DesignID is set only for succeeded resize jobs, URLs only for succeeded
// export jobs and Error only for failed jobs.
type Job struct {
	Kind     JobKind
	ID       string
	Status   JobStatus
	DesignID string
	URLs     []string
	Error    string
}

// NormalizeStatus maps the vocabularies seen across API versions onto the
// three-state enum. Unknown values are treated as still pending.
func NormalizeStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "completed", "complete", "done":
		return JobStatusSucceeded
	case "failed", "failure", "error", "errored":
		return JobStatusFailed
	default:
		return JobStatusPending
	}
}

// Credential is the bearer material obtained from the OAuth exchange.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Scope        string
}
