package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"designbridge/internal/domain"
	"designbridge/internal/observability"
)

// Aggregate statuses of an export request.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// ArtifactFailure records one artifact that could not be handed to the sink.
type ArtifactFailure struct {
	Page      int    `json:"page"`
	SourceURL string `json:"source_url"`
	Error     string `json:"error"`
}

// VariantResult is the outcome of one variant. OK is true only when the chain
// succeeded and every artifact was stored; Artifacts lists the locations that
// were stored either way and is never nil.
type VariantResult struct {
	Variant   string            `json:"variant"`
	OK        bool              `json:"ok"`
	Artifacts []string          `json:"artifacts"`
	Error     string            `json:"error,omitempty"`
	Failures  []ArtifactFailure `json:"failures,omitempty"`
}

// PerVariantResults holds one entry per requested variant, in request order.
type PerVariantResults struct {
	GroupID string          `json:"group_id"`
	Results []VariantResult `json:"results"`
}

// Status summarizes the results: succeeded when every variant is OK, failed
// when none is, partial otherwise.
func (r PerVariantResults) Status() string {
	ok := 0
	for _, res := range r.Results {
		if res.OK {
			ok++
		}
	}
	switch {
	case len(r.Results) > 0 && ok == len(r.Results):
		return StatusSucceeded
	case ok == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// State maps Status to the stored lifecycle state of the request.
func (r PerVariantResults) State() domain.ExportState {
	switch r.Status() {
	case StatusSucceeded:
		return domain.ExportSucceeded
	case StatusPartial:
		return domain.ExportPartial
	default:
		return domain.ExportFailed
	}
}

// RunExportRequest runs one chain per variant concurrently and waits for all
// of them. A failing or panicking variant never cancels or hides its siblings.
func (o *Orchestrator) RunExportRequest(ctx context.Context, token string, req domain.ExportRequest) PerVariantResults {
	ctx, span := o.tracer.StartExportRequest(ctx, req.DesignID, len(req.Variants))
	defer span.End()

	groupID := GroupID(req.DesignID, o.now())
	results := make([]VariantResult, len(req.Variants))

	var wg sync.WaitGroup
	for i, variant := range req.Variants {
		wg.Add(1)
		go func(i int, variant domain.Variant) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error().
						Str("variant", variant.Label()).
						Interface("panic", r).
						Msg("orchestrator: variant panicked")
					results[i] = failedResult(variant, fmt.Sprintf("internal error: %v", r))
				}
			}()
			results[i] = o.runVariant(ctx, token, req, groupID, variant)
		}(i, variant)
	}
	wg.Wait()

	out := PerVariantResults{GroupID: groupID, Results: results}
	o.logger.Info().
		Str("design_id", req.DesignID).
		Str("group_id", groupID).
		Str("status", out.Status()).
		Int("variants", len(results)).
		Msg("orchestrator: export request finished")
	return out
}

func (o *Orchestrator) runVariant(ctx context.Context, token string, req domain.ExportRequest, groupID string, variant domain.Variant) VariantResult {
	ctx, span := o.tracer.StartChain(ctx, variant.Label())
	defer span.End()

	logger := o.logger.With().Str("variant", variant.Label()).Str("group_id", groupID).Logger()

	out, err := o.RunChain(ctx, token, req.DesignID, StepsForVariant(variant, req.Format))
	if err != nil {
		observability.RecordError(span, err)
		o.metrics.ChainOutcome(ctx, false)
		logger.Warn().Err(err).Msg("orchestrator: chain failed")
		return failedResult(variant, domain.Reason(err))
	}
	if len(out.URLs) == 0 {
		logger.Warn().Msg("orchestrator: export succeeded with no artifacts")
	}

	res := o.sinkArtifacts(ctx, groupID, variant, req.Format, out.URLs)
	if !res.OK {
		observability.RecordError(span, errors.New(res.Error))
	}
	o.metrics.ChainOutcome(ctx, res.OK)
	return res
}

// sinkArtifacts stores every artifact independently; one failure does not
// stop the others.
func (o *Orchestrator) sinkArtifacts(ctx context.Context, groupID string, variant domain.Variant, format domain.ExportFormat, urls []string) VariantResult {
	locations := make([]string, len(urls))
	errs := make([]error, len(urls))
	persistent := o.sink.Persistent()

	var wg sync.WaitGroup
	for i, src := range urls {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("sink panic: %v", r)
				}
			}()
			key := StorageKey(o.namespace, groupID, variant.Code(), i+1, format.Extension())
			locations[i], errs[i] = o.sink.Store(ctx, src, key, format.ContentType())
		}(i, src)
	}
	wg.Wait()

	res := VariantResult{Variant: variant.Label(), Artifacts: make([]string, 0, len(urls))}
	for i := range urls {
		o.metrics.SinkOutcome(ctx, persistent, errs[i] == nil)
		if errs[i] != nil {
			o.logger.Warn().
				Err(errs[i]).
				Str("variant", variant.Label()).
				Int("page", i+1).
				Msg("orchestrator: artifact sink failed")
			res.Failures = append(res.Failures, ArtifactFailure{Page: i + 1, SourceURL: urls[i], Error: errs[i].Error()})
			continue
		}
		res.Artifacts = append(res.Artifacts, locations[i])
	}
	res.OK = len(res.Failures) == 0
	if !res.OK {
		msgs := make([]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			msgs = append(msgs, fmt.Sprintf("page %d: %s", f.Page, f.Error))
		}
		res.Error = fmt.Sprintf("%d of %d artifacts could not be stored: %s", len(res.Failures), len(urls), strings.Join(msgs, "; "))
	}
	return res
}

func failedResult(variant domain.Variant, reason string) VariantResult {
	return VariantResult{Variant: variant.Label(), OK: false, Artifacts: []string{}, Error: reason}
}
