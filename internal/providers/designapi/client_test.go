package designapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"designbridge/internal/domain"
)

type captureTransport struct {
	responses map[string]responseStub
	requests  []*http.Request
	bodies    [][]byte
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = raw
	}
	c.requests = append(c.requests, req)
	c.bodies = append(c.bodies, body)
	if stub, ok := c.responses[req.Method+" "+req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	if stub, ok := c.responses[req.Method+" "+req.URL.String()]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSON(key string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[key] = responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		header[k] = append([]string(nil), values...)
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}

func newTestClient(t *testing.T, transport *captureTransport) *Client {
	t.Helper()
	client, err := NewClient(Options{
		BaseURL:      "https://api.example.com/rest",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/v1/auth/callback",
		HTTPClient:   &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateResizeJob(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("POST /rest/v1/resizes", http.StatusOK, map[string]any{
		"job": map[string]any{"id": "r1", "status": "in_progress"},
	})
	client := newTestClient(t, transport)

	id, err := client.CreateJob(context.Background(), "tok", domain.JobKindResize, NewResizeBody("DAF1a2b3c4", 1080, 1920))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if id != "r1" {
		t.Fatalf("job id = %q, want r1", id)
	}
	req := transport.requests[0]
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("authorization = %q", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.bodies[0], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["design_id"] != "DAF1a2b3c4" {
		t.Fatalf("design_id = %v", payload["design_id"])
	}
	dt := payload["design_type"].(map[string]any)
	if dt["width"].(float64) != 1080 || dt["height"].(float64) != 1920 || dt["type"] != "custom" {
		t.Fatalf("design_type = %v", dt)
	}
}

func TestGetJobNormalizesVocabulary(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("GET /rest/v1/resizes/r1", http.StatusOK, map[string]any{
		"job": map[string]any{"id": "r1", "status": "success", "result": map[string]any{"design": map[string]any{"id": "d2"}}},
	})
	transport.setJSON("GET /rest/v1/exports/e1", http.StatusOK, map[string]any{
		"job": map[string]any{"id": "e1", "status": "completed", "urls": []string{"https://cdn.example.com/1.png", "https://cdn.example.com/2.png"}},
	})
	transport.setJSON("GET /rest/v1/exports/e2", http.StatusOK, map[string]any{
		"job": map[string]any{"id": "e2", "status": "failed", "error": map[string]any{"code": "quota_exceeded"}},
	})
	transport.setJSON("GET /rest/v1/exports/e3", http.StatusOK, map[string]any{
		"job": map[string]any{"id": "e3", "status": "in_progress"},
	})
	client := newTestClient(t, transport)
	ctx := context.Background()

	resize, err := client.GetJob(ctx, "tok", domain.JobKindResize, "r1")
	if err != nil {
		t.Fatalf("get resize: %v", err)
	}
	if resize.Status != domain.JobStatusSucceeded || resize.DesignID != "d2" {
		t.Fatalf("resize = %+v", resize)
	}

	export, err := client.GetJob(ctx, "tok", domain.JobKindExport, "e1")
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if export.Status != domain.JobStatusSucceeded || len(export.URLs) != 2 {
		t.Fatalf("export = %+v", export)
	}

	failed, err := client.GetJob(ctx, "tok", domain.JobKindExport, "e2")
	if err != nil {
		t.Fatalf("get failed export: %v", err)
	}
	if failed.Status != domain.JobStatusFailed || failed.Error != "quota_exceeded" {
		t.Fatalf("failed = %+v", failed)
	}

	pending, err := client.GetJob(ctx, "tok", domain.JobKindExport, "e3")
	if err != nil {
		t.Fatalf("get pending export: %v", err)
	}
	if pending.Status != domain.JobStatusPending {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestCallReturnsHTTPError(t *testing.T) {
	transport := newCaptureTransport()
	transport.responses["POST /rest/v1/exports"] = responseStub{
		status: http.StatusTooManyRequests,
		body:   []byte(strings.Repeat("x", 2000)),
	}
	client := newTestClient(t, transport)

	_, err := client.CreateJob(context.Background(), "tok", domain.JobKindExport, NewExportBody("DAF1a2b3c4", domain.FormatPNG))
	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", httpErr.Status)
	}
	if len(httpErr.Body) > maxErrorBody+3 {
		t.Fatalf("body not truncated: %d bytes", len(httpErr.Body))
	}
	if len(transport.requests) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(transport.requests))
	}
}

func TestCallRequiresToken(t *testing.T) {
	transport := newCaptureTransport()
	client := newTestClient(t, transport)
	if _, err := client.GetJob(context.Background(), " ", domain.JobKindExport, "e1"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if len(transport.requests) != 0 {
		t.Fatalf("no request expected without token")
	}
}

func TestDownloadOmitsAuthorization(t *testing.T) {
	transport := newCaptureTransport()
	transport.responses["GET https://cdn.example.com/1.png"] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}},
		body:   []byte{0x89, 'P', 'N', 'G'},
	}
	client := newTestClient(t, transport)

	data, contentType, err := client.Download(context.Background(), "https://cdn.example.com/1.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(data) != 4 || contentType != "image/png" {
		t.Fatalf("download = %d bytes, %q", len(data), contentType)
	}
	if transport.requests[0].Header.Get("Authorization") != "" {
		t.Fatalf("download must not forward credentials")
	}
}

func TestExchangeToken(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("POST /rest/v1/oauth/token", http.StatusOK, map[string]any{
		"access_token":  "at",
		"refresh_token": "rt",
		"expires_in":    14400,
		"token_type":    "Bearer",
	})
	client := newTestClient(t, transport)

	cred, err := client.ExchangeToken(context.Background(), "code-1", "verifier-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if cred.AccessToken != "at" || cred.RefreshToken != "rt" || cred.ExpiresIn != 14400 {
		t.Fatalf("credential = %+v", cred)
	}
	req := transport.requests[0]
	user, pass, ok := req.BasicAuth()
	if !ok || user != "client-id" || pass != "client-secret" {
		t.Fatalf("basic auth = %q %q %v", user, pass, ok)
	}
	form := string(transport.bodies[0])
	for _, want := range []string{"grant_type=authorization_code", "code=code-1", "code_verifier=verifier-1"} {
		if !strings.Contains(form, want) {
			t.Fatalf("form %q missing %q", form, want)
		}
	}
}

func TestAuthorizeURL(t *testing.T) {
	client := newTestClient(t, newCaptureTransport())
	got := client.AuthorizeURL("state-1", "challenge-1")
	for _, want := range []string{"code_challenge=challenge-1", "code_challenge_method=S256", "state=state-1", "client_id=client-id"} {
		if !strings.Contains(got, want) {
			t.Fatalf("authorize url %q missing %q", got, want)
		}
	}
}

func TestCurrentUser(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("GET /rest/v1/users/me", http.StatusOK, map[string]any{
		"team_user": map[string]any{"user_id": "UAF42", "team_id": "TAF7"},
	})
	client := newTestClient(t, transport)

	id, err := client.CurrentUser(context.Background(), "tok")
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if id.UserID != "UAF42" || id.TeamID != "TAF7" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestCurrentUserRequiresUserID(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("GET /rest/v1/users/me", http.StatusOK, map[string]any{"team_user": map[string]any{}})
	client := newTestClient(t, transport)

	if _, err := client.CurrentUser(context.Background(), "tok"); err == nil {
		t.Fatal("expected error for empty identity")
	}
}

func TestDownloadEnforcesSizeLimit(t *testing.T) {
	transport := newCaptureTransport()
	transport.responses["GET https://cdn.example.com/big.png"] = responseStub{
		status: http.StatusOK,
		body:   bytes.Repeat([]byte{'x'}, 5),
	}
	client, err := NewClient(Options{HTTPClient: &http.Client{Transport: transport}, MaxDownloadBytes: 4})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, _, err := client.Download(context.Background(), "https://cdn.example.com/big.png"); !errors.Is(err, ErrArtifactTooLarge) {
		t.Fatalf("expected ErrArtifactTooLarge, got %v", err)
	}

	client, _ = NewClient(Options{HTTPClient: &http.Client{Transport: transport}, MaxDownloadBytes: 5})
	data, _, err := client.Download(context.Background(), "https://cdn.example.com/big.png")
	if err != nil || len(data) != 5 {
		t.Fatalf("download at the limit = %d bytes, %v", len(data), err)
	}
}

func TestExportBodyShape(t *testing.T) {
	raw, err := json.Marshal(NewExportBody("DAF1a2b3c4", domain.FormatPDF))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"design_id":"DAF1a2b3c4","format":{"type":"pdf"}}` {
		t.Fatalf("export body = %s", raw)
	}
}
