package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/infra/credentials"
	"designbridge/internal/middleware"
	"designbridge/internal/orchestrator"
	"designbridge/internal/providers/designapi"
)

// Exporter runs an export request to completion.
type Exporter interface {
	RunExportRequest(ctx context.Context, token string, req domain.ExportRequest) orchestrator.PerVariantResults
}

// TokenSource returns a usable design API token for a local user.
type TokenSource interface {
	Current(ctx context.Context, userID string) (string, error)
}

// OAuthClient is the part of the design API client used by the login flow.
type OAuthClient interface {
	AuthorizeURL(state, challenge string) string
	ExchangeToken(ctx context.Context, code, verifier string) (domain.Credential, error)
	CurrentUser(ctx context.Context, token string) (designapi.Identity, error)
}

// StateStore keeps PKCE verifiers between login and callback.
type StateStore interface {
	Save(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string) (string, error)
}

// CredentialStore persists OAuth credentials per user.
type CredentialStore interface {
	Save(ctx context.Context, userID string, rec credentials.Record) error
	Delete(ctx context.Context, userID string) error
}

// App carries the dependencies shared by all handlers.
type App struct {
	Logger        infra.Logger
	Users         domain.UserRepository
	Exports       domain.ExportRepository
	Exporter      Exporter
	Tokens        TokenSource
	OAuth         OAuthClient
	States        StateStore
	Credentials   CredentialStore
	JWTSecret     string
	SessionTTL    time.Duration
	SecureCookies bool
	SinkBackend   string
	Now           func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// log prefers the request scoped logger installed by middleware.Logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: kind, Message: message})
}

const maxBodyBytes = 64 << 10

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
