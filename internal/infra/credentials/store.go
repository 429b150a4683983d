package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/sqlinline"
)

// Record is the stored OAuth credential of one user. A zero ExpiresAt means
// the provider did not report a lifetime.
type Record struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is past, or within skew of, its
// expiry.
func (r Record) Expired(now time.Time, skew time.Duration) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(r.ExpiresAt)
}

// FromCredential converts a token endpoint response into a Record.
func FromCredential(cred domain.Credential, now time.Time) Record {
	rec := Record{
		AccessToken:  strings.TrimSpace(cred.AccessToken),
		RefreshToken: strings.TrimSpace(cred.RefreshToken),
		Scope:        cred.Scope,
	}
	if cred.ExpiresIn > 0 {
		rec.ExpiresAt = now.Add(time.Duration(cred.ExpiresIn) * time.Second).UTC()
	}
	return rec
}

// Store keeps the OAuth credential of each user in Postgres.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Load returns the credential of userID, or domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, userID string) (Record, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectOAuthCredential, userID)
	var (
		rec       Record
		expiresAt *time.Time
	)
	if err := row.Scan(&rec.AccessToken, &rec.RefreshToken, &rec.Scope, &expiresAt); err != nil {
		if infra.IsNoRows(err) {
			return Record{}, domain.ErrNotFound
		}
		return Record{}, fmt.Errorf("credentials: load: %w", err)
	}
	if expiresAt != nil {
		rec.ExpiresAt = expiresAt.UTC()
	}
	rec.AccessToken = strings.TrimSpace(rec.AccessToken)
	return rec, nil
}

// Save upserts the credential. An empty refresh token keeps the stored one.
func (s *Store) Save(ctx context.Context, userID string, rec Record) error {
	if strings.TrimSpace(rec.AccessToken) == "" {
		return errors.New("credentials: access token is required")
	}
	var expiresAt *time.Time
	if !rec.ExpiresAt.IsZero() {
		t := rec.ExpiresAt.UTC()
		expiresAt = &t
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertOAuthCredential, userID, rec.AccessToken, rec.RefreshToken, rec.Scope, expiresAt)
	if err != nil {
		return fmt.Errorf("credentials: save: %w", err)
	}
	return nil
}

// Delete removes the credential of userID. Deleting a missing credential is
// not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteOAuthCredential, userID); err != nil {
		return fmt.Errorf("credentials: delete: %w", err)
	}
	return nil
}
