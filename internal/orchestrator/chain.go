// Package orchestrator runs chains of dependent remote jobs (resize then
// export) and fans an export request out into one independent chain per
// variant.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"designbridge/internal/domain"
	"designbridge/internal/observability"
	"designbridge/internal/providers/designapi"
)

// JobAPI is the subset of the remote API the orchestrator depends on.
type JobAPI interface {
	CreateJob(ctx context.Context, token string, kind domain.JobKind, body any) (string, error)
	GetJob(ctx context.Context, token string, kind domain.JobKind, jobID string) (domain.Job, error)
}

// StepSpec describes one job of a chain. BuildRequest turns the previous
// step's output (or the chain input for step 0) into the create payload.
// ExtractNext turns a succeeded job into the next step's input; it is not
// called for the last step.
type StepSpec struct {
	Kind         domain.JobKind
	BuildRequest func(input string) any
	ExtractNext  func(job domain.Job) (string, error)
}

// ChainOutput is the result of a completed chain. URLs holds the final job's
// artifact URLs and is never nil.
type ChainOutput struct {
	Jobs []domain.Job
	URLs []string
}

var errNoDesignID = errors.New("resize succeeded without a design id")

// DesignIDFromJob is the ExtractNext used by resize steps.
func DesignIDFromJob(job domain.Job) (string, error) {
	if strings.TrimSpace(job.DesignID) == "" {
		return "", errNoDesignID
	}
	return job.DesignID, nil
}

// ResizeStep builds a custom-size resize step.
func ResizeStep(width, height int) StepSpec {
	return StepSpec{
		Kind: domain.JobKindResize,
		BuildRequest: func(designID string) any {
			return designapi.NewResizeBody(designID, width, height)
		},
		ExtractNext: DesignIDFromJob,
	}
}

// ExportStep builds an export step for every page of the input design.
func ExportStep(format domain.ExportFormat) StepSpec {
	return StepSpec{
		Kind: domain.JobKindExport,
		BuildRequest: func(designID string) any {
			return designapi.NewExportBody(designID, format)
		},
	}
}

// StepsForVariant returns the chain that produces v.
func StepsForVariant(v domain.Variant, format domain.ExportFormat) []StepSpec {
	if v.Kind == domain.VariantResize {
		return []StepSpec{ResizeStep(v.Width, v.Height), ExportStep(format)}
	}
	return []StepSpec{ExportStep(format)}
}

// RunChain executes steps strictly in order, feeding each step's extracted
// output unmodified into the next one. Any failure stops the chain and is
// returned as a *domain.ChainError carrying the failing step index.
func (o *Orchestrator) RunChain(ctx context.Context, token, input string, steps []StepSpec) (ChainOutput, error) {
	if len(steps) == 0 {
		return ChainOutput{}, errors.New("orchestrator: chain has no steps")
	}
	out := ChainOutput{Jobs: make([]domain.Job, 0, len(steps)), URLs: []string{}}
	for i, step := range steps {
		job, err := o.runStep(ctx, token, i, step, input)
		if err != nil {
			return out, &domain.ChainError{Step: i, Kind: step.Kind, Err: err}
		}
		out.Jobs = append(out.Jobs, job)
		if i == len(steps)-1 {
			if len(job.URLs) > 0 {
				out.URLs = append(out.URLs, job.URLs...)
			}
			break
		}
		extract := step.ExtractNext
		if extract == nil {
			extract = DesignIDFromJob
		}
		next, err := extract(job)
		if err != nil {
			return out, &domain.ChainError{Step: i, Kind: step.Kind, Err: err}
		}
		o.logger.Debug().
			Int("step", i).
			Str("kind", string(step.Kind)).
			Str("job_id", job.ID).
			Str("next_input", next).
			Msg("orchestrator: step completed")
		input = next
	}
	return out, nil
}

func (o *Orchestrator) runStep(ctx context.Context, token string, index int, step StepSpec, input string) (job domain.Job, err error) {
	ctx, span := o.tracer.StartStep(ctx, index, string(step.Kind))
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	if step.BuildRequest == nil {
		return domain.Job{}, fmt.Errorf("orchestrator: step %d has no request builder", index)
	}
	jobID, err := o.api.CreateJob(ctx, token, step.Kind, step.BuildRequest(input))
	if err != nil {
		return domain.Job{}, err
	}
	target := domain.Job{Kind: step.Kind, ID: jobID, Status: domain.JobStatusPending}
	fetch := func(ctx context.Context) (domain.Job, error) {
		return o.api.GetJob(ctx, token, step.Kind, jobID)
	}
	return o.poller.Poll(ctx, target, fetch, o.policy)
}
