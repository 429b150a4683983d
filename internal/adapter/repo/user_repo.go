package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new user repository backed by PostgreSQL.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// LinkUser creates or refreshes the local user of a design platform account
// and returns its id.
func (r *UserRepositoryPG) LinkUser(ctx context.Context, designUserID, teamID string) (string, error) {
	designUserID = strings.TrimSpace(designUserID)
	if designUserID == "" {
		return "", errors.New("repo: design user id is required")
	}
	var id uuid.UUID
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertDesignUser, uuid.New(), designUserID, strings.TrimSpace(teamID))
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("repo: link user: %w", err)
	}
	return id.String(), nil
}

// GetByID fetches a user by its identifier.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id)
	var (
		user domain.User
		uid  uuid.UUID
	)
	if err := row.Scan(&uid, &user.DesignUserID, &user.TeamID, &user.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get user: %w", err)
	}
	user.ID = uid.String()
	return &user, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
