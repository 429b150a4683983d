package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"designbridge/internal/domain"
	"designbridge/internal/sqlinline"
)

type stubExecutor struct {
	row  stubRow
	err  error
	exec struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

// stubRow assigns values to destinations by position.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("dest count mismatch")
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = r.values[i].(string)
		case **time.Time:
			if r.values[i] == nil {
				*ptr = nil
				continue
			}
			t := r.values[i].(time.Time)
			*ptr = &t
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func TestLoad(t *testing.T) {
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := NewStore(&stubExecutor{row: stubRow{values: []any{" access ", "refresh", "design:content:read", exp}}})
	rec, err := store.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if rec.AccessToken != "access" || rec.RefreshToken != "refresh" || !rec.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestLoad_NoExpiry(t *testing.T) {
	store := NewStore(&stubExecutor{row: stubRow{values: []any{"access", "", "", nil}}})
	rec, err := store.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !rec.ExpiresAt.IsZero() || rec.Expired(time.Now(), time.Minute) {
		t.Fatalf("credential without expiry must never expire: %+v", rec)
	}
}

func TestLoad_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	_, err := store.Load(context.Background(), "user-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSave(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := store.Save(context.Background(), "user-1", Record{AccessToken: "a", RefreshToken: "r", ExpiresAt: exp}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if exec.exec.query != sqlinline.QUpsertOAuthCredential {
		t.Fatal("unexpected query")
	}
	if len(exec.exec.args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[4].(*time.Time); !ok || !v.Equal(exp) {
		t.Fatalf("expected expiry argument, got %T %v", exec.exec.args[4], exec.exec.args[4])
	}
}

func TestSaveWithoutExpiryPassesNull(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Save(context.Background(), "user-1", Record{AccessToken: "a"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if v, ok := exec.exec.args[4].(*time.Time); !ok || v != nil {
		t.Fatalf("expected nil expiry, got %v", exec.exec.args[4])
	}
}

func TestSaveEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.Save(context.Background(), "user-1", Record{AccessToken: " "}); err == nil {
		t.Fatal("expected error for empty access token")
	}
}

func TestFromCredentialAndExpired(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	rec := FromCredential(domain.Credential{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600}, now)
	if !rec.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires at = %v", rec.ExpiresAt)
	}
	if rec.Expired(now, time.Minute) {
		t.Fatal("fresh credential reported expired")
	}
	if !rec.Expired(now.Add(59*time.Minute+30*time.Second), time.Minute) {
		t.Fatal("credential within skew should be expired")
	}
}
