// Package worker drains queued export requests from Postgres.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/orchestrator"
)

const (
	DefaultPollInterval = 2 * time.Second
	// DefaultRunTimeout bounds one claimed request. It stays below StaleAfter
	// so a live worker never races a requeue.
	DefaultRunTimeout = 10 * time.Minute
	// StaleAfter is how long a request may stay running before a restarted
	// worker hands it out again.
	StaleAfter = 15 * time.Minute
)

// Exporter runs one export request.
type Exporter interface {
	RunExportRequest(ctx context.Context, token string, req domain.ExportRequest) orchestrator.PerVariantResults
}

// TokenSource yields a usable access token for a local user.
type TokenSource interface {
	Current(ctx context.Context, userID string) (string, error)
}

// Options configures a Worker.
type Options struct {
	Exports      domain.ExportRepository
	Exporter     Exporter
	Tokens       TokenSource
	Concurrency  int
	PollInterval time.Duration
	RunTimeout   time.Duration
	Logger       *infra.Logger
}

// Worker claims queued requests and runs up to Concurrency of them at once.
type Worker struct {
	exports      domain.ExportRepository
	exporter     Exporter
	tokens       TokenSource
	concurrency  int
	pollInterval time.Duration
	runTimeout   time.Duration
	logger       *infra.Logger
}

func New(opts Options) (*Worker, error) {
	if opts.Exports == nil || opts.Exporter == nil || opts.Tokens == nil {
		return nil, errors.New("worker: exports, exporter and tokens are required")
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 || runTimeout >= StaleAfter {
		runTimeout = DefaultRunTimeout
	}
	return &Worker{
		exports:      opts.Exports,
		exporter:     opts.Exporter,
		tokens:       opts.Tokens,
		concurrency:  concurrency,
		pollInterval: interval,
		runTimeout:   runTimeout,
		logger:       logger,
	}, nil
}

// Run requeues stale requests once and then processes the queue until ctx is
// cancelled. Cancelling ctx stops new claims only: in-flight requests keep
// running, bounded by RunTimeout, and finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if n, err := w.exports.RequeueStale(ctx, StaleAfter); err != nil {
		w.logger.Warn().Err(err).Msg("worker: requeue stale requests failed")
	} else if n > 0 {
		w.logger.Info().Int64("count", n).Msg("worker: requeued stale requests")
	}

	w.logger.Info().Int("concurrency", w.concurrency).Msg("worker: started")
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error().Err(err).Int("slot", slot).Msg("worker: claim failed")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessNext claims and runs one request. It reports false when the queue
// was empty or the claim failed.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	rec, err := w.exports.Claim(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		if rec != nil {
			w.fail(ctx, rec.ID, "stored request is unreadable")
			return true, err
		}
		return false, err
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.runTimeout)
	defer cancel()
	w.handle(runCtx, rec)
	return true, nil
}

// handle runs rec to completion on ctx, which is detached from shutdown.
func (w *Worker) handle(ctx context.Context, rec *domain.ExportRecord) {
	log := w.logger.With().Str("request_id", rec.ID).Str("design_id", rec.DesignID).Logger()
	log.Info().Int("variants", len(rec.Variants)).Msg("worker: picked request")

	token, err := w.tokens.Current(ctx, rec.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("worker: no usable credential")
		w.fail(ctx, rec.ID, "design account is not connected")
		return
	}

	results := w.exporter.RunExportRequest(ctx, token, rec.Request())
	encoded, err := json.Marshal(results)
	if err != nil {
		log.Error().Err(err).Msg("worker: encode results failed")
		w.fail(ctx, rec.ID, "could not encode results")
		return
	}
	state := results.State()
	var errMsg string
	if state == domain.ExportFailed && len(results.Results) > 0 {
		errMsg = results.Results[0].Error
	}
	if err := w.exports.Complete(context.WithoutCancel(ctx), rec.ID, state, encoded, errMsg); err != nil {
		log.Error().Err(err).Msg("worker: complete request failed")
		return
	}
	log.Info().Str("status", string(state)).Str("group_id", results.GroupID).Msg("worker: request finished")
}

func (w *Worker) fail(ctx context.Context, id, reason string) {
	if err := w.exports.Complete(context.WithoutCancel(ctx), id, domain.ExportFailed, nil, reason); err != nil {
		w.logger.Error().Err(err).Str("request_id", id).Msg("worker: mark failed")
	}
}
