package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"designbridge/internal/domain"
	"designbridge/internal/poller"
	"designbridge/internal/providers/designapi"
)

type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

type createCall struct {
	kind domain.JobKind
	body any
}

// stubAPI derives job ids from the create payload and replays scripted
// status sequences per job id.
type stubAPI struct {
	mu       sync.Mutex
	creates  []createCall
	scripts  map[string][]domain.Job
	reads    map[string]int
	createFn func(kind domain.JobKind, body any) (string, error)
}

func newStubAPI() *stubAPI {
	return &stubAPI{scripts: map[string][]domain.Job{}, reads: map[string]int{}}
}

func (s *stubAPI) CreateJob(ctx context.Context, token string, kind domain.JobKind, body any) (string, error) {
	s.mu.Lock()
	s.creates = append(s.creates, createCall{kind: kind, body: body})
	fn := s.createFn
	s.mu.Unlock()
	if fn != nil {
		return fn(kind, body)
	}
	return defaultJobID(kind, body), nil
}

func (s *stubAPI) GetJob(ctx context.Context, token string, kind domain.JobKind, jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	script, ok := s.scripts[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("no script for %s", jobID)
	}
	idx := s.reads[jobID]
	s.reads[jobID]++
	if idx >= len(script) {
		idx = len(script) - 1
	}
	job := script[idx]
	job.ID = jobID
	job.Kind = kind
	return job, nil
}

func (s *stubAPI) script(jobID string, jobs ...domain.Job) {
	s.scripts[jobID] = jobs
}

func (s *stubAPI) createdBodies(kind domain.JobKind) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, c := range s.creates {
		if c.kind == kind {
			out = append(out, c.body)
		}
	}
	return out
}

func defaultJobID(kind domain.JobKind, body any) string {
	switch b := body.(type) {
	case designapi.ResizeBody:
		return fmt.Sprintf("resize-%dx%d", b.DesignType.Width, b.DesignType.Height)
	case designapi.ExportBody:
		return "export-" + b.DesignID
	}
	return string(kind)
}

var (
	pendingJob = domain.Job{Status: domain.JobStatusPending}
	testNow    = time.Date(2026, 10, 19, 8, 30, 15, 123*int(time.Millisecond), time.UTC)
)

func succeededResize(designID string) domain.Job {
	return domain.Job{Status: domain.JobStatusSucceeded, DesignID: designID}
}

func succeededExport(urls ...string) domain.Job {
	return domain.Job{Status: domain.JobStatusSucceeded, URLs: urls}
}

func failedJob(msg string) domain.Job {
	return domain.Job{Status: domain.JobStatusFailed, Error: msg}
}

func newTestOrchestrator(t *testing.T, api JobAPI, opts ...func(*Options)) *Orchestrator {
	t.Helper()
	o := Options{
		API:    api,
		Poller: poller.New(poller.Options{Clock: &instantClock{now: testNow}}),
		Policy: poller.Policy{InitialDelay: time.Second, MaxDelay: 4 * time.Second, BackoffFactor: 2, Deadline: 30 * time.Second},
		Now:    func() time.Time { return testNow },
	}
	for _, fn := range opts {
		fn(&o)
	}
	orch, err := New(o)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func TestRunChainThreadsResizedDesignID(t *testing.T) {
	api := newStubAPI()
	api.createFn = func(kind domain.JobKind, body any) (string, error) {
		if kind == domain.JobKindResize {
			return "r1", nil
		}
		return "e1", nil
	}
	api.script("r1", pendingJob, pendingJob, succeededResize("d2"))
	api.script("e1", pendingJob, succeededExport("https://cdn.example.com/d2-1.png"))
	orch := newTestOrchestrator(t, api)

	out, err := orch.RunChain(context.Background(), "tok", "DAF1a2b3c4", StepsForVariant(domain.Variant{Kind: domain.VariantResize, Width: 1080, Height: 1920}, domain.FormatPNG))
	if err != nil {
		t.Fatalf("run chain: %v", err)
	}
	if api.reads["r1"] != 3 {
		t.Fatalf("resize reads = %d, want 3", api.reads["r1"])
	}

	resizeBodies := api.createdBodies(domain.JobKindResize)
	if len(resizeBodies) != 1 {
		t.Fatalf("resize creates = %d", len(resizeBodies))
	}
	resize := resizeBodies[0].(designapi.ResizeBody)
	if resize.DesignID != "DAF1a2b3c4" || resize.DesignType.Width != 1080 || resize.DesignType.Height != 1920 {
		t.Fatalf("resize body = %+v", resize)
	}

	exportBodies := api.createdBodies(domain.JobKindExport)
	if len(exportBodies) != 1 {
		t.Fatalf("export creates = %d", len(exportBodies))
	}
	raw, _ := json.Marshal(exportBodies[0])
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode export body: %v", err)
	}
	if payload["design_id"] != "d2" {
		t.Fatalf("export design_id = %v, want d2", payload["design_id"])
	}
	if len(out.URLs) != 1 || len(out.Jobs) != 2 {
		t.Fatalf("output = %+v", out)
	}
}

func TestRunChainReportsFailingStep(t *testing.T) {
	api := newStubAPI()
	api.script("resize-1080x1080", succeededResize("d-square"))
	api.script("export-d-square", pendingJob, failedJob("export_failed"))
	orch := newTestOrchestrator(t, api)

	_, err := orch.RunChain(context.Background(), "tok", "DAF1a2b3c4", StepsForVariant(domain.Variant{Kind: domain.VariantResize, Width: 1080, Height: 1080}, domain.FormatPNG))
	var chainErr *domain.ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %v", err)
	}
	if chainErr.Step != 1 || chainErr.Kind != domain.JobKindExport {
		t.Fatalf("chain error = %+v", chainErr)
	}
	if domain.Reason(err) != "export_failed" {
		t.Fatalf("reason = %q", domain.Reason(err))
	}
}

func TestRunChainCreateFailureKeepsHTTPDetail(t *testing.T) {
	api := newStubAPI()
	api.createFn = func(domain.JobKind, any) (string, error) {
		return "", &domain.HTTPError{Status: 401, Body: `{"code":"invalid_access_token"}`}
	}
	orch := newTestOrchestrator(t, api)

	_, err := orch.RunChain(context.Background(), "tok", "DAF1a2b3c4", []StepSpec{ExportStep(domain.FormatPNG)})
	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 401 {
		t.Fatalf("expected wrapped 401, got %v", err)
	}
	var chainErr *domain.ChainError
	if !errors.As(err, &chainErr) || chainErr.Step != 0 {
		t.Fatalf("expected step 0 chain error, got %v", err)
	}
}

func TestRunChainResizeWithoutDesignID(t *testing.T) {
	api := newStubAPI()
	api.script("resize-1080x1350", succeededResize(""))
	orch := newTestOrchestrator(t, api)

	_, err := orch.RunChain(context.Background(), "tok", "DAF1a2b3c4", StepsForVariant(domain.Variant{Kind: domain.VariantResize, Width: 1080, Height: 1350}, domain.FormatPNG))
	var chainErr *domain.ChainError
	if !errors.As(err, &chainErr) || chainErr.Step != 0 {
		t.Fatalf("expected step 0 chain error, got %v", err)
	}
	if len(api.createdBodies(domain.JobKindExport)) != 0 {
		t.Fatal("export must not start without a resized design")
	}
}

func threeVariantRequest() domain.ExportRequest {
	req, _ := domain.NewExportRequest("DAF1a2b3c4", []domain.Variant{
		{Kind: domain.VariantOriginal},
		{Kind: domain.VariantResize, Preset: "9:16"},
		{Kind: domain.VariantResize, Preset: "1:1"},
	}, "png")
	return req
}

func TestRunExportRequestIsolatesFailedVariant(t *testing.T) {
	api := newStubAPI()
	api.script("export-DAF1a2b3c4", pendingJob, succeededExport("https://cdn.example.com/orig-1.png"))
	api.script("resize-1080x1920", pendingJob, failedJob("quota_exceeded"))
	api.script("resize-1080x1080", succeededResize("d-square"))
	api.script("export-d-square", succeededExport("https://cdn.example.com/sq-1.png", "https://cdn.example.com/sq-2.png"))
	orch := newTestOrchestrator(t, api)

	res := orch.RunExportRequest(context.Background(), "tok", threeVariantRequest())
	if len(res.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(res.Results))
	}
	var failed, ok int
	for _, r := range res.Results {
		if r.OK {
			ok++
			continue
		}
		failed++
		if r.Variant != "9:16" || r.Error != "quota_exceeded" {
			t.Fatalf("unexpected failure %+v", r)
		}
	}
	if failed != 1 || ok != 2 {
		t.Fatalf("ok=%d failed=%d, want 2/1", ok, failed)
	}
	if res.Status() != StatusPartial {
		t.Fatalf("status = %s, want partial", res.Status())
	}
	if got := res.Results[0].Artifacts; len(got) != 1 || got[0] != "https://cdn.example.com/orig-1.png" {
		t.Fatalf("original artifacts = %v", got)
	}
	if got := res.Results[2].Artifacts; len(got) != 2 {
		t.Fatalf("square artifacts = %v", got)
	}
	if res.Results[1].Artifacts == nil {
		t.Fatal("failed variant must carry an empty, non-nil artifact list")
	}
}

func TestRunExportRequestSurvivesPanic(t *testing.T) {
	api := newStubAPI()
	api.createFn = func(kind domain.JobKind, body any) (string, error) {
		if b, ok := body.(designapi.ResizeBody); ok && b.DesignType.Width == 1440 {
			panic("boom")
		}
		return defaultJobID(kind, body), nil
	}
	api.script("export-DAF1a2b3c4", succeededExport("https://cdn.example.com/orig-1.png"))
	orch := newTestOrchestrator(t, api)

	req, _ := domain.NewExportRequest("DAF1a2b3c4", []domain.Variant{
		{Kind: domain.VariantOriginal},
		{Kind: domain.VariantResize, Preset: "4:3"},
	}, "")
	res := orch.RunExportRequest(context.Background(), "tok", req)
	if !res.Results[0].OK {
		t.Fatalf("original should succeed: %+v", res.Results[0])
	}
	if res.Results[1].OK || !strings.Contains(res.Results[1].Error, "boom") {
		t.Fatalf("panicking variant = %+v", res.Results[1])
	}
}

func TestRunExportRequestEmptyArtifactsIsSuccess(t *testing.T) {
	api := newStubAPI()
	api.script("export-DAF1a2b3c4", succeededExport())
	orch := newTestOrchestrator(t, api)

	req, _ := domain.NewExportRequest("DAF1a2b3c4", nil, "png")
	res := orch.RunExportRequest(context.Background(), "tok", req)
	r := res.Results[0]
	if !r.OK || r.Error != "" {
		t.Fatalf("result = %+v, want ok", r)
	}
	raw, _ := json.Marshal(r)
	if !strings.Contains(string(raw), `"artifacts":[]`) {
		t.Fatalf("json = %s, want explicit empty artifacts", raw)
	}
	if res.Status() != StatusSucceeded {
		t.Fatalf("status = %s", res.Status())
	}
}

type recordingSink struct {
	mu     sync.Mutex
	keys   []string
	failOn string
}

func (s *recordingSink) Store(ctx context.Context, sourceURL, key, contentType string) (string, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	if strings.Contains(sourceURL, s.failOn) {
		return "", &domain.SinkError{Op: domain.SinkOpWrite, Key: key, Err: errors.New("bucket unavailable")}
	}
	return "https://bucket.example.com/" + key, nil
}

func (s *recordingSink) Persistent() bool { return true }

func TestSinkFailureDoesNotAbortSiblings(t *testing.T) {
	api := newStubAPI()
	api.script("export-DAF1a2b3c4", succeededExport(
		"https://cdn.example.com/p1.png",
		"https://cdn.example.com/p2.png",
		"https://cdn.example.com/p3.png",
	))
	sink := &recordingSink{failOn: "p2"}
	orch := newTestOrchestrator(t, api, func(o *Options) { o.Sink = sink })

	req, _ := domain.NewExportRequest("DAF1a2b3c4", nil, "png")
	res := orch.RunExportRequest(context.Background(), "tok", req)
	r := res.Results[0]
	if r.OK {
		t.Fatal("variant with a failed artifact must not report ok")
	}
	if len(r.Artifacts) != 2 || len(r.Failures) != 1 || r.Failures[0].Page != 2 {
		t.Fatalf("result = %+v", r)
	}
	if len(sink.keys) != 3 {
		t.Fatalf("sink calls = %d, want 3", len(sink.keys))
	}
	group := GroupID("DAF1a2b3c4", testNow)
	want := "exports/" + group + "/" + group + "_orig_1.png"
	if r.Artifacts[0] != "https://bucket.example.com/"+want {
		t.Fatalf("artifact[0] = %q, want key %q", r.Artifacts[0], want)
	}
}

func TestGroupIDAndStorageKey(t *testing.T) {
	group := GroupID("DAF1a2b3c4", testNow)
	if group != "DAF1a2b3c4-20261019T083015123Z" {
		t.Fatalf("group = %q", group)
	}
	key := StorageKey("exports", group, "9x16", 2, "png")
	if key != "exports/"+group+"/"+group+"_9x16_2.png" {
		t.Fatalf("key = %q", key)
	}
}

func TestStatusAggregation(t *testing.T) {
	all := PerVariantResults{Results: []VariantResult{{OK: true}, {OK: true}}}
	none := PerVariantResults{Results: []VariantResult{{OK: false}, {OK: false}}}
	some := PerVariantResults{Results: []VariantResult{{OK: true}, {OK: false}}}
	if all.Status() != StatusSucceeded || none.Status() != StatusFailed || some.Status() != StatusPartial {
		t.Fatalf("statuses = %s %s %s", all.Status(), none.Status(), some.Status())
	}
}
