package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"designbridge/internal/infra/credentials"
	"designbridge/internal/middleware"
	"designbridge/internal/session"
)

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthLogin starts the authorization code flow: it stores a fresh PKCE
// verifier under a random state and redirects to the consent page.
func (a *App) AuthLogin(w http.ResponseWriter, r *http.Request) {
	verifier, err := session.NewVerifier()
	if err != nil {
		a.log(r).Error().Err(err).Msg("auth: create verifier failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}
	state, err := session.NewState()
	if err != nil {
		a.log(r).Error().Err(err).Msg("auth: create state failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}
	if err := a.States.Save(r.Context(), state, verifier); err != nil {
		a.log(r).Error().Err(err).Msg("auth: save state failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}
	http.Redirect(w, r, a.OAuth.AuthorizeURL(state, session.Challenge(verifier)), http.StatusFound)
}

// AuthCallback finishes the flow: it redeems the state, exchanges the code,
// links the platform account to a local user, stores the credential and
// issues a session token.
func (a *App) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if denied := strings.TrimSpace(q.Get("error")); denied != "" {
		a.error(w, http.StatusBadRequest, "access_denied", tr(r, msgLoginDenied, denied))
		return
	}
	code, state := strings.TrimSpace(q.Get("code")), strings.TrimSpace(q.Get("state"))
	if code == "" || state == "" {
		a.error(w, http.StatusBadRequest, "bad_request", tr(r, msgCodeRequired))
		return
	}
	verifier, err := a.States.Take(r.Context(), state)
	if errors.Is(err, session.ErrUnknownState) {
		a.error(w, http.StatusBadRequest, "invalid_state", tr(r, msgUnknownState))
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Msg("auth: take state failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}

	cred, err := a.OAuth.ExchangeToken(r.Context(), code, verifier)
	if err != nil {
		a.log(r).Warn().Err(err).Msg("auth: token exchange failed")
		a.error(w, http.StatusBadGateway, "upstream", tr(r, msgExchangeFailed))
		return
	}
	identity, err := a.OAuth.CurrentUser(r.Context(), cred.AccessToken)
	if err != nil {
		a.log(r).Warn().Err(err).Msg("auth: identity lookup failed")
		a.error(w, http.StatusBadGateway, "upstream", tr(r, msgExchangeFailed))
		return
	}
	userID, err := a.Users.LinkUser(r.Context(), identity.UserID, identity.TeamID)
	if err != nil {
		a.log(r).Error().Err(err).Msg("auth: link user failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}
	now := a.now()
	if err := a.Credentials.Save(r.Context(), userID, credentials.FromCredential(cred, now)); err != nil {
		a.log(r).Error().Err(err).Str("user_id", userID).Msg("auth: save credential failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}

	ttl := a.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := middleware.NewSessionClaims(userID, middleware.LocaleFromContext(r.Context()), now, ttl)
	token, err := middleware.SignJWT(a.JWTSecret, claims)
	if err != nil {
		a.log(r).Error().Err(err).Msg("auth: sign session failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}
	expiresAt := time.Unix(claims.Exp, 0).UTC()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	a.log(r).Info().Str("user_id", userID).Msg("auth: login completed")
	a.json(w, http.StatusOK, loginResponse{Token: token, UserID: userID, ExpiresAt: expiresAt})
}

// AuthLogout forgets the stored credential and clears the session cookie.
func (a *App) AuthLogout(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", tr(r, msgMissingUser))
		return
	}
	if err := a.Credentials.Delete(r.Context(), userID); err != nil {
		a.log(r).Error().Err(err).Str("user_id", userID).Msg("auth: delete credential failed")
		a.error(w, http.StatusInternalServerError, "internal", tr(r, msgInternal))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
