package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"designbridge/internal/domain"
	"designbridge/internal/observability"
	"designbridge/internal/orchestrator"
	"designbridge/internal/session"
)

// variantInput accepts either a shorthand string ("original", "9:16",
// "1200x628") or an explicit variant object.
type variantInput struct {
	domain.Variant
}

func (v *variantInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := domain.ParseVariant(s)
		if err != nil {
			return err
		}
		v.Variant = parsed
		return nil
	}
	return json.Unmarshal(data, &v.Variant)
}

type exportPayload struct {
	Design   string         `json:"design"`
	Variants []variantInput `json:"variants"`
	Format   string         `json:"format"`
}

type exportResponse struct {
	RequestID string                       `json:"request_id"`
	GroupID   string                       `json:"group_id"`
	Status    string                       `json:"status"`
	Results   []orchestrator.VariantResult `json:"results"`
}

type queuedResponse struct {
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type exportRecordResponse struct {
	RequestID  string          `json:"request_id"`
	DesignID   string          `json:"design_id"`
	Format     string          `json:"format"`
	Variants   []string        `json:"variants"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// parseExport decodes and validates the request body. It writes the error
// response itself and reports whether the caller may continue.
func (a *App) parseExport(w http.ResponseWriter, r *http.Request) (domain.ExportRequest, bool) {
	var p exportPayload
	if err := decodeJSON(r, &p); err != nil {
		var invalid *domain.InvalidInputError
		if errors.As(err, &invalid) {
			a.error(w, http.StatusBadRequest, "invalid_input", tr(r, msgInvalidDesignInput, invalid.Input, invalid.Reason))
			return domain.ExportRequest{}, false
		}
		a.error(w, http.StatusBadRequest, "bad_request", tr(r, msgInvalidPayload))
		return domain.ExportRequest{}, false
	}
	variants := make([]domain.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, v.Variant)
	}
	req, err := domain.NewExportRequest(p.Design, variants, p.Format)
	if err != nil {
		var invalid *domain.InvalidInputError
		if errors.As(err, &invalid) {
			a.error(w, http.StatusBadRequest, "invalid_input", tr(r, msgInvalidDesignInput, invalid.Input, invalid.Reason))
		} else {
			a.error(w, http.StatusBadRequest, "bad_request", tr(r, msgInvalidPayload))
		}
		return domain.ExportRequest{}, false
	}
	return req, true
}

// CreateExport runs every variant of the request before responding.
func (a *App) CreateExport(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", tr(r, msgMissingUser))
		return
	}
	req, ok := a.parseExport(w, r)
	if !ok {
		return
	}

	authTiming := observability.StartTiming(r.Context(), "token", "credential lookup")
	token, err := a.Tokens.Current(r.Context(), userID)
	authTiming.Stop()
	if err != nil {
		a.tokenError(w, r, userID, err)
		return
	}

	rec := &domain.ExportRecord{
		UserID:   userID,
		DesignID: req.DesignID,
		Variants: req.Variants,
		Format:   req.Format,
		Status:   domain.ExportRunning,
		Mode:     domain.ExportModeSync,
	}
	if err := a.Exports.Create(r.Context(), rec); err != nil {
		a.log(r).Error().Err(err).Str("user_id", userID).Msg("exports: create record failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgPersistFailed))
		return
	}

	runTiming := observability.StartTiming(r.Context(), "export", req.DesignID)
	results := a.Exporter.RunExportRequest(r.Context(), token, req)
	runTiming.Stop()

	status := results.Status()
	a.complete(r, rec.ID, results)
	a.log(r).Info().
		Str("request_id", rec.ID).
		Str("design_id", req.DesignID).
		Str("group_id", results.GroupID).
		Str("status", status).
		Int("variants", len(results.Results)).
		Msg("exports: request finished")

	a.json(w, http.StatusOK, exportResponse{
		RequestID: rec.ID,
		GroupID:   results.GroupID,
		Status:    status,
		Results:   results.Results,
	})
}

// CreateExportAsync queues the request for the worker and returns at once.
func (a *App) CreateExportAsync(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", tr(r, msgMissingUser))
		return
	}
	req, ok := a.parseExport(w, r)
	if !ok {
		return
	}
	rec := &domain.ExportRecord{
		UserID:   userID,
		DesignID: req.DesignID,
		Variants: req.Variants,
		Format:   req.Format,
		Status:   domain.ExportQueued,
		Mode:     domain.ExportModeAsync,
	}
	if err := a.Exports.Create(r.Context(), rec); err != nil {
		a.log(r).Error().Err(err).Str("user_id", userID).Msg("exports: queue record failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgPersistFailed))
		return
	}
	w.Header().Set("Location", "/v1/exports/"+rec.ID)
	a.json(w, http.StatusAccepted, queuedResponse{
		RequestID: rec.ID,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	})
}

// GetExport returns a stored request of the current user. Finished records
// carry an ETag so pollers can revalidate cheaply.
func (a *App) GetExport(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", tr(r, msgMissingUser))
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", tr(r, msgExportNotFound))
		return
	}
	rec, err := a.Exports.GetForUser(r.Context(), id, userID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", tr(r, msgExportNotFound))
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Str("request_id", id).Msg("exports: load record failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}

	resp := exportRecordResponse{
		RequestID:  rec.ID,
		DesignID:   rec.DesignID,
		Format:     string(rec.Format),
		Variants:   make([]string, 0, len(rec.Variants)),
		Status:     string(rec.Status),
		Error:      rec.Error,
		Result:     rec.Result,
		CreatedAt:  rec.CreatedAt,
		FinishedAt: rec.FinishedAt,
	}
	for _, v := range rec.Variants {
		resp.Variants = append(resp.Variants, v.Label())
	}
	body, err := json.Marshal(resp)
	if err != nil {
		a.log(r).Error().Err(err).Str("request_id", id).Msg("exports: encode record failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	w.Header().Set("ETag", etag)
	if !rec.Status.Finished() {
		w.Header().Set("Cache-Control", "no-cache")
	}
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func (a *App) complete(r *http.Request, id string, results orchestrator.PerVariantResults) {
	encoded, err := json.Marshal(results)
	if err != nil {
		a.log(r).Error().Err(err).Str("request_id", id).Msg("exports: encode results failed")
		return
	}
	state := results.State()
	var errMsg string
	if state == domain.ExportFailed && len(results.Results) > 0 {
		errMsg = results.Results[0].Error
	}
	// The row is finished even if the client has gone away; the response still
	// carries the results when this write fails.
	if err := a.Exports.Complete(context.WithoutCancel(r.Context()), id, state, encoded, errMsg); err != nil {
		a.log(r).Error().Err(err).Str("request_id", id).Msg("exports: complete record failed")
	}
}

func (a *App) tokenError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	if errors.Is(err, session.ErrNoCredential) {
		a.error(w, http.StatusUnauthorized, "not_connected", tr(r, msgNotConnected))
		return
	}
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) && (httpErr.Status == http.StatusBadRequest || httpErr.Status == http.StatusUnauthorized) {
		a.error(w, http.StatusUnauthorized, "not_connected", tr(r, msgNotConnected))
		return
	}
	a.log(r).Error().Err(err).Str("user_id", userID).Msg("exports: load credential failed")
	a.error(w, http.StatusBadGateway, "upstream", tr(r, msgDesignAPIRejected))
}
