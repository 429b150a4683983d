package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPollTimeout    = errors.New("poll timeout")
	ErrDownloadFailed = errors.New("download failed")
	ErrWriteFailed    = errors.New("write failed")
)

// HTTPError is returned when the remote API answers with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// JobFailedError is returned when a remote job reaches the failed state.
type JobFailedError struct {
	Kind    JobKind
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s job %s failed: %s", e.Kind, e.JobID, e.Message)
}

// PollTimeoutError is returned when the deadline elapses while a job is still pending.
type PollTimeoutError struct {
	JobID    string
	Elapsed  time.Duration
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job %s still pending after %s (%d attempts)", e.JobID, e.Elapsed.Round(time.Millisecond), e.Attempts)
}

func (e *PollTimeoutError) Is(target error) bool {
	return target == ErrPollTimeout
}

// PollError wraps a transport or cancellation failure observed while polling.
type PollError struct {
	JobID string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll job %s: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// ChainError records the step of a job chain at which a failure occurred.
type ChainError struct {
	Step int
	Kind JobKind
	Err  error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain step %d (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// SinkOp identifies which half of a sink operation failed.
type SinkOp string

const (
	SinkOpDownload SinkOp = "download"
	SinkOpWrite    SinkOp = "write"
)

// SinkError is returned by result sinks; it matches ErrDownloadFailed or
// ErrWriteFailed depending on Op.
type SinkError struct {
	Op  SinkOp
	Key string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

func (e *SinkError) Is(target error) bool {
	switch e.Op {
	case SinkOpDownload:
		return target == ErrDownloadFailed
	case SinkOpWrite:
		return target == ErrWriteFailed
	}
	return false
}

// InvalidInputError is returned for user input rejected before any remote call.
type InvalidInputError struct {
	Input  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Reason extracts the most specific human-readable message from err: the
// remote job error, the remote HTTP body, or a short label for timeouts.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var failed *JobFailedError
	if errors.As(err, &failed) {
		return failed.Message
	}
	if errors.Is(err, ErrPollTimeout) {
		return "timeout"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if body := strings.TrimSpace(httpErr.Body); body != "" {
			return fmt.Sprintf("http %d: %s", httpErr.Status, body)
		}
		return fmt.Sprintf("http %d", httpErr.Status)
	}
	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		return invalid.Reason
	}
	return err.Error()
}
