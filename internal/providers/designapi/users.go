package designapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Identity is the platform account behind an access token.
type Identity struct {
	UserID string
	TeamID string
}

type identityEnvelope struct {
	TeamUser struct {
		UserID string `json:"user_id"`
		TeamID string `json:"team_id"`
	} `json:"team_user"`
}

// CurrentUser resolves the account that owns token.
func (c *Client) CurrentUser(ctx context.Context, token string) (Identity, error) {
	var env identityEnvelope
	if err := c.Call(ctx, token, http.MethodGet, "/v1/users/me", nil, &env); err != nil {
		return Identity{}, err
	}
	id := Identity{
		UserID: strings.TrimSpace(env.TeamUser.UserID),
		TeamID: strings.TrimSpace(env.TeamUser.TeamID),
	}
	if id.UserID == "" {
		return Identity{}, errors.New("designapi: identity response carried no user id")
	}
	return id, nil
}
