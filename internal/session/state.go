package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateTTL bounds how long a login redirect may take to come back.
const StateTTL = 10 * time.Minute

const stateKeyPrefix = "oauth_state:"

// ErrUnknownState is returned for a callback whose state was never issued,
// has expired or was already used.
var ErrUnknownState = errors.New("session: unknown or expired oauth state")

// StateStore keeps the PKCE verifier of pending logins in Redis. Each state
// can be taken exactly once.
type StateStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStateStore(client redis.Cmdable) *StateStore {
	return &StateStore{client: client, ttl: StateTTL}
}

// Save remembers verifier under state.
func (s *StateStore) Save(ctx context.Context, state, verifier string) error {
	state = strings.TrimSpace(state)
	if state == "" || verifier == "" {
		return errors.New("session: state and verifier are required")
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, verifier, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save state: %w", err)
	}
	return nil
}

// Take returns and deletes the verifier saved under state.
func (s *StateStore) Take(ctx context.Context, state string) (string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return "", ErrUnknownState
	}
	verifier, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownState
	}
	if err != nil {
		return "", fmt.Errorf("session: take state: %w", err)
	}
	return verifier, nil
}
