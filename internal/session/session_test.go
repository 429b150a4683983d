package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"designbridge/internal/domain"
	"designbridge/internal/infra/credentials"
)

func TestChallengeIsS256(t *testing.T) {
	got := Challenge("dBjftJeZ4CVP-mJ0kz23Bg5yhGhIvx2q8oZRXnOISAE")
	if got != "WKWyJkzognnMQx6h_Egs8vwdnaxOW-GHRQ4_2yBr1MU" {
		t.Fatalf("challenge = %q", got)
	}
}

func TestNewVerifierLength(t *testing.T) {
	a, err := NewVerifier()
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	b, _ := NewVerifier()
	if len(a) != 43 || a == b {
		t.Fatalf("verifiers %q %q", a, b)
	}
}

// fakeRedis overrides the two commands the state store uses; any other
// command panics on the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
	ttl  time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) GetDel(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.data, key)
	return redis.NewStringResult(v, nil)
}

func TestStateStoreIsSingleUse(t *testing.T) {
	fake := newFakeRedis()
	store := NewStateStore(fake)
	ctx := context.Background()

	if err := store.Save(ctx, "state-1", "verifier-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fake.ttl != StateTTL {
		t.Fatalf("ttl = %v", fake.ttl)
	}
	v, err := store.Take(ctx, "state-1")
	if err != nil || v != "verifier-1" {
		t.Fatalf("Take = %q, %v", v, err)
	}
	if _, err := store.Take(ctx, "state-1"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("second Take = %v, want ErrUnknownState", err)
	}
	if _, err := store.Take(ctx, ""); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("empty Take = %v", err)
	}
}

type memoryStore struct {
	mu    sync.Mutex
	recs  map[string]credentials.Record
	saves int
}

func (m *memoryStore) Load(ctx context.Context, userID string) (credentials.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[userID]
	if !ok {
		return credentials.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *memoryStore) Save(ctx context.Context, userID string, rec credentials.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[userID] = rec
	m.saves++
	return nil
}

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	cred  domain.Credential
	err   error
}

func (s *stubRefresher) RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.cred, s.err
}

var sessionNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestCurrentReturnsFreshToken(t *testing.T) {
	store := &memoryStore{recs: map[string]credentials.Record{
		"u1": {AccessToken: "a1", RefreshToken: "r1", ExpiresAt: sessionNow.Add(time.Hour)},
	}}
	refresher := &stubRefresher{}
	src := NewCredentialSource(store, refresher, func() time.Time { return sessionNow }, nil)

	tok, err := src.Current(context.Background(), "u1")
	if err != nil || tok != "a1" {
		t.Fatalf("Current = %q, %v", tok, err)
	}
	if refresher.calls != 0 {
		t.Fatal("fresh token must not be refreshed")
	}
}

func TestCurrentRefreshesExpiringToken(t *testing.T) {
	store := &memoryStore{recs: map[string]credentials.Record{
		"u1": {AccessToken: "a1", RefreshToken: "r1", ExpiresAt: sessionNow.Add(time.Minute)},
	}}
	refresher := &stubRefresher{cred: domain.Credential{AccessToken: "a2", ExpiresIn: 3600}}
	src := NewCredentialSource(store, refresher, func() time.Time { return sessionNow }, nil)

	tok, err := src.Current(context.Background(), "u1")
	if err != nil || tok != "a2" {
		t.Fatalf("Current = %q, %v", tok, err)
	}
	saved := store.recs["u1"]
	if saved.AccessToken != "a2" || saved.RefreshToken != "r1" {
		t.Fatalf("saved = %+v, want new access token and kept refresh token", saved)
	}
}

func TestCurrentFallsBackWhenRefreshFailsBeforeExpiry(t *testing.T) {
	store := &memoryStore{recs: map[string]credentials.Record{
		"u1": {AccessToken: "a1", RefreshToken: "r1", ExpiresAt: sessionNow.Add(time.Minute)},
	}}
	refresher := &stubRefresher{err: &domain.HTTPError{Status: 400, Body: "invalid_grant"}}
	src := NewCredentialSource(store, refresher, func() time.Time { return sessionNow }, nil)

	tok, err := src.Current(context.Background(), "u1")
	if err != nil || tok != "a1" {
		t.Fatalf("Current = %q, %v", tok, err)
	}
}

func TestCurrentFailsWhenExpiredAndRefreshFails(t *testing.T) {
	store := &memoryStore{recs: map[string]credentials.Record{
		"u1": {AccessToken: "a1", RefreshToken: "r1", ExpiresAt: sessionNow.Add(-time.Minute)},
	}}
	refresher := &stubRefresher{err: &domain.HTTPError{Status: 400, Body: "invalid_grant"}}
	src := NewCredentialSource(store, refresher, func() time.Time { return sessionNow }, nil)

	_, err := src.Current(context.Background(), "u1")
	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected refresh error, got %v", err)
	}
}

func TestCurrentWithoutCredential(t *testing.T) {
	src := NewCredentialSource(&memoryStore{recs: map[string]credentials.Record{}}, nil, nil, nil)
	if _, err := src.Current(context.Background(), "nobody"); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestCurrentExpiredWithoutRefreshToken(t *testing.T) {
	store := &memoryStore{recs: map[string]credentials.Record{
		"u1": {AccessToken: "a1", ExpiresAt: sessionNow.Add(-time.Second)},
	}}
	src := NewCredentialSource(store, &stubRefresher{}, func() time.Time { return sessionNow }, nil)
	if _, err := src.Current(context.Background(), "u1"); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}
