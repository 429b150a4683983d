package designapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
)

// maxErrorBody bounds the response body kept on HTTPError for diagnostics.
const maxErrorBody = 512

// ErrMissingToken indicates that a remote call was attempted without a bearer token.
var ErrMissingToken = errors.New("designapi: bearer token is required")

// Options configures the design API client.
type Options struct {
	BaseURL        string
	AuthorizeURL   string
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	Scopes         []string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// MaxDownloadBytes caps a single artifact download. Zero means
	// DefaultMaxDownloadBytes.
	MaxDownloadBytes int64
}

// DefaultMaxDownloadBytes is the artifact size limit when none is configured.
const DefaultMaxDownloadBytes int64 = 256 << 20

// ErrArtifactTooLarge is returned by Download when the body exceeds the limit.
var ErrArtifactTooLarge = errors.New("designapi: artifact exceeds download limit")

// Client performs HTTP calls against the design platform REST API. It keeps no
// mutable state and may be shared by any number of concurrent job chains.
type Client struct {
	baseURL      string
	authorizeURL string
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       []string
	httpClient   *http.Client
	logger       *infra.Logger
	maxDownload  int64
}

type jobEnvelope struct {
	Job remoteJob `json:"job"`
}

type remoteJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Design struct {
			ID string `json:"id"`
		} `json:"design"`
	} `json:"result,omitempty"`
	URLs  []string `json:"urls,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.canva.com/rest"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("designapi: invalid base url: %w", err)
	}
	authorizeURL := strings.TrimSpace(opts.AuthorizeURL)
	if authorizeURL == "" {
		authorizeURL = "https://www.canva.com/api/oauth/authorize"
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{"design:meta:read", "design:content:read", "design:content:write"}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	maxDownload := opts.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = DefaultMaxDownloadBytes
	}
	return &Client{
		maxDownload:  maxDownload,
		baseURL:      baseURL,
		authorizeURL: authorizeURL,
		clientID:     strings.TrimSpace(opts.ClientID),
		clientSecret: strings.TrimSpace(opts.ClientSecret),
		redirectURI:  strings.TrimSpace(opts.RedirectURI),
		scopes:       scopes,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Call issues one authenticated JSON request. A non-2xx answer is returned as
// *domain.HTTPError carrying the status and a truncated body. Call never retries.
func (c *Client) Call(ctx context.Context, token, method, path string, body, out any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("designapi: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("designapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("designapi: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("designapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.HTTPError{Status: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), maxErrorBody)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("designapi: decode response: %w", err)
	}
	return nil
}

// CreateJob starts a resize or export job and returns the remote job id.
func (c *Client) CreateJob(ctx context.Context, token string, kind domain.JobKind, body any) (string, error) {
	path, err := jobPath(kind)
	if err != nil {
		return "", err
	}
	var env jobEnvelope
	if err := c.Call(ctx, token, http.MethodPost, path, body, &env); err != nil {
		return "", err
	}
	if strings.TrimSpace(env.Job.ID) == "" {
		return "", fmt.Errorf("designapi: create %s job: response carried no job id", kind)
	}
	c.logger.Debug().
		Str("kind", string(kind)).
		Str("job_id", env.Job.ID).
		Msg("designapi: job created")
	return env.Job.ID, nil
}

// GetJob reads the current state of a job and normalizes it.
func (c *Client) GetJob(ctx context.Context, token string, kind domain.JobKind, jobID string) (domain.Job, error) {
	path, err := jobPath(kind)
	if err != nil {
		return domain.Job{}, err
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.Job{}, errors.New("designapi: job id is required")
	}
	var env jobEnvelope
	if err := c.Call(ctx, token, http.MethodGet, path+"/"+url.PathEscape(jobID), nil, &env); err != nil {
		return domain.Job{}, err
	}
	return toDomainJob(kind, jobID, env.Job), nil
}

func toDomainJob(kind domain.JobKind, jobID string, rj remoteJob) domain.Job {
	job := domain.Job{
		Kind:   kind,
		ID:     jobID,
		Status: domain.NormalizeStatus(rj.Status),
	}
	if rj.ID != "" {
		job.ID = rj.ID
	}
	switch job.Status {
	case domain.JobStatusSucceeded:
		if rj.Result != nil {
			job.DesignID = rj.Result.Design.ID
		}
		job.URLs = append([]string{}, rj.URLs...)
	case domain.JobStatusFailed:
		job.Error = "unknown error"
		if rj.Error != nil {
			if msg := strings.TrimSpace(rj.Error.Message); msg != "" {
				job.Error = msg
			} else if code := strings.TrimSpace(rj.Error.Code); code != "" {
				job.Error = code
			}
		}
	}
	return job
}

// Download fetches a transient artifact URL. No credentials are attached.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, "", fmt.Errorf("designapi: invalid artifact url: %s", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("designapi: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("designapi: download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", &domain.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if resp.ContentLength > c.maxDownload {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrArtifactTooLarge, resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, "", fmt.Errorf("designapi: read artifact: %w", err)
	}
	if int64(len(data)) > c.maxDownload {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrArtifactTooLarge, c.maxDownload)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func jobPath(kind domain.JobKind) (string, error) {
	switch kind {
	case domain.JobKindResize:
		return "/v1/resizes", nil
	case domain.JobKindExport:
		return "/v1/exports", nil
	default:
		return "", fmt.Errorf("designapi: unsupported job kind %q", kind)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
