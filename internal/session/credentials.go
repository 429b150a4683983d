package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/infra/credentials"
)

// ErrNoCredential means the user never completed the OAuth flow or logged out.
var ErrNoCredential = errors.New("session: no stored credential")

// refreshSkew is how long before its expiry an access token is renewed.
const refreshSkew = 2 * time.Minute

// CredentialStore is the persistence the source reads and updates.
type CredentialStore interface {
	Load(ctx context.Context, userID string) (credentials.Record, error)
	Save(ctx context.Context, userID string, rec credentials.Record) error
}

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error)
}

// CredentialSource hands out a usable access token per user. Concurrent
// callers for the same user share a single refresh.
type CredentialSource struct {
	store     CredentialStore
	refresher Refresher
	now       func() time.Time
	logger    *infra.Logger
	group     singleflight.Group
}

// NewCredentialSource wires a source. now and logger may be nil.
func NewCredentialSource(store CredentialStore, refresher Refresher, now func() time.Time, logger *infra.Logger) *CredentialSource {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &CredentialSource{store: store, refresher: refresher, now: now, logger: logger}
}

// Current returns the access token of userID, refreshing it first when it is
// about to expire and a refresh token is available. A refresh failure falls
// back to the stored token only while that token has not actually expired.
func (s *CredentialSource) Current(ctx context.Context, userID string) (string, error) {
	rec, err := s.store.Load(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", err
	}
	now := s.now()
	if !rec.Expired(now, refreshSkew) {
		return rec.AccessToken, nil
	}
	if rec.RefreshToken == "" || s.refresher == nil {
		if rec.Expired(now, 0) {
			return "", ErrNoCredential
		}
		return rec.AccessToken, nil
	}

	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.refresh(ctx, userID, rec)
	})
	if err != nil {
		if !rec.Expired(now, 0) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("session: refresh failed, using current token")
			return rec.AccessToken, nil
		}
		return "", err
	}
	return v.(string), nil
}

func (s *CredentialSource) refresh(ctx context.Context, userID string, rec credentials.Record) (string, error) {
	cred, err := s.refresher.RefreshToken(ctx, rec.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("session: refresh token: %w", err)
	}
	next := credentials.FromCredential(cred, s.now())
	if next.RefreshToken == "" {
		next.RefreshToken = rec.RefreshToken
	}
	if err := s.store.Save(ctx, userID, next); err != nil {
		return "", err
	}
	s.logger.Info().Str("user_id", userID).Time("expires_at", next.ExpiresAt).Msg("session: token refreshed")
	return next.AccessToken, nil
}
