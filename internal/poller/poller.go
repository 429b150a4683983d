// Package poller watches remote asynchronous jobs until they reach a terminal
// state, backing off exponentially between status reads.
package poller

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/observability"
)

const (
	DefaultInitialDelay  = 1500 * time.Millisecond
	DefaultMaxDelay      = 4 * time.Second
	DefaultBackoffFactor = 1.3
	DefaultDeadline      = 120 * time.Second
)

// FetchFunc reads the current state of one specific remote job.
type FetchFunc func(ctx context.Context) (domain.Job, error)

// Policy bounds a single Poll run.
type Policy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Deadline      time.Duration
}

// DefaultPolicy returns the delays observed to work well against the design API.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay:  DefaultInitialDelay,
		MaxDelay:      DefaultMaxDelay,
		BackoffFactor: DefaultBackoffFactor,
		Deadline:      DefaultDeadline,
	}
}

// Normalize fills zero fields with defaults. The initial delay never exceeds
// the ceiling and the factor is at least 1 so delays never shrink.
func (p Policy) Normalize() Policy {
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.InitialDelay > p.MaxDelay {
		p.InitialDelay = p.MaxDelay
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.Deadline <= 0 {
		p.Deadline = DefaultDeadline
	}
	return p
}

func (p Policy) next(delay time.Duration) time.Duration {
	n := time.Duration(float64(delay) * p.BackoffFactor)
	if n < delay {
		n = delay
	}
	if n > p.MaxDelay {
		n = p.MaxDelay
	}
	return n
}

// Clock abstracts time so tests can observe delays without waiting.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options configures a Poller.
type Options struct {
	Clock   Clock
	Logger  *infra.Logger
	Metrics *observability.Metrics
}

// Poller is stateless between calls; every Poll keeps its own delay and
// elapsed time, so one Poller may serve any number of concurrent jobs.
type Poller struct {
	clock   Clock
	logger  *infra.Logger
	metrics *observability.Metrics
}

// New constructs a Poller with sane defaults.
func New(opts Options) *Poller {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	return &Poller{clock: clock, logger: logger, metrics: metrics}
}

// Poll calls fetch until the job succeeds, fails or the deadline passes.
//
// A succeeded job is returned with a nil error. A failed job is returned with
// a *domain.JobFailedError. Still pending at the deadline yields a
// *domain.PollTimeoutError, as does a fetch still running at deadline plus
// MaxDelay. Any fetch error ends polling immediately and is
// wrapped in a *domain.PollError.
func (p *Poller) Poll(ctx context.Context, target domain.Job, fetch FetchFunc, policy Policy) (domain.Job, error) {
	policy = policy.Normalize()
	start := p.clock.Now()
	delay := policy.InitialDelay
	kind := string(target.Kind)

	for attempt := 1; ; attempt++ {
		p.metrics.PollAttempt(ctx, kind)
		budget := policy.Deadline + policy.MaxDelay - p.clock.Now().Sub(start)
		if budget <= 0 {
			return target, p.timeout(ctx, target, p.clock.Now().Sub(start), attempt-1)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, budget)
		job, err := fetch(fetchCtx)
		stalled := fetchCtx.Err() != nil && ctx.Err() == nil
		cancel()
		if err != nil {
			if stalled {
				return target, p.timeout(ctx, target, p.clock.Now().Sub(start), attempt)
			}
			p.metrics.JobOutcome(ctx, kind, "error")
			return target, &domain.PollError{JobID: target.ID, Err: err}
		}
		if job.Kind == "" {
			job.Kind = target.Kind
		}
		if job.ID == "" {
			job.ID = target.ID
		}

		switch job.Status {
		case domain.JobStatusSucceeded:
			p.metrics.JobOutcome(ctx, kind, "succeeded")
			p.logger.Debug().
				Str("kind", kind).
				Str("job_id", job.ID).
				Int("attempts", attempt).
				Msg("poller: job succeeded")
			return job, nil
		case domain.JobStatusFailed:
			p.metrics.JobOutcome(ctx, kind, "failed")
			return job, &domain.JobFailedError{Kind: job.Kind, JobID: job.ID, Message: job.Error}
		}

		elapsed := p.clock.Now().Sub(start)
		if elapsed >= policy.Deadline {
			return job, p.timeout(ctx, job, elapsed, attempt)
		}

		if err := p.clock.Sleep(ctx, delay); err != nil {
			p.metrics.JobOutcome(ctx, kind, "error")
			return job, &domain.PollError{JobID: job.ID, Err: err}
		}
		delay = policy.next(delay)
	}
}

func (p *Poller) timeout(ctx context.Context, job domain.Job, elapsed time.Duration, attempts int) error {
	p.metrics.JobOutcome(ctx, string(job.Kind), "timeout")
	p.logger.Warn().
		Str("kind", string(job.Kind)).
		Str("job_id", job.ID).
		Dur("elapsed", elapsed).
		Int("attempts", attempts).
		Msg("poller: deadline exceeded")
	return &domain.PollTimeoutError{JobID: job.ID, Elapsed: elapsed, Attempts: attempts}
}
