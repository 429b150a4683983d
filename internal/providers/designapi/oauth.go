package designapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"designbridge/internal/domain"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// AuthorizeURL returns the consent URL for the authorization-code flow with
// an S256 PKCE challenge.
func (c *Client) AuthorizeURL(state, challenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.clientID)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("scope", strings.Join(c.scopes, " "))
	q.Set("state", state)
	if c.redirectURI != "" {
		q.Set("redirect_uri", c.redirectURI)
	}
	return c.authorizeURL + "?" + q.Encode()
}

// ExchangeToken trades an authorization code and its PKCE verifier for a credential.
func (c *Client) ExchangeToken(ctx context.Context, code, verifier string) (domain.Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(verifier) == "" {
		return domain.Credential{}, errors.New("designapi: code and verifier are required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	if c.redirectURI != "" {
		form.Set("redirect_uri", c.redirectURI)
	}
	return c.tokenRequest(ctx, form)
}

// RefreshToken obtains a fresh access token from a refresh token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.Credential{}, errors.New("designapi: refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (domain.Credential, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return domain.Credential{}, errors.New("designapi: client id and secret are required for token requests")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("designapi: build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out tokenResponse
	if err := c.do(req, &out); err != nil {
		return domain.Credential{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return domain.Credential{}, errors.New("designapi: token response carried no access token")
	}
	return domain.Credential{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
		Scope:        out.Scope,
	}, nil
}
