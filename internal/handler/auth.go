package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

const stateCookieName = "oauth_state"

// GitHubAuthenticator is the part of auth.GitHubProvider the handler uses.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves the user endpoints:
//
//	POST  /api/user/create/     register
//	POST  /api/user/token/      email + password → token
//	GET   /api/user/me/         current profile
//	PATCH /api/user/me/         update name / password
//	GET   /auth/github/login    redirect to GitHub (when configured)
//	GET   /auth/github/callback GitHub → token cookie
//	POST  /auth/logout          clear the token cookie
type AuthHandler struct {
	svc          *service.AuthService
	github       GitHubAuthenticator // nil when GitHub login is not configured
	tokenTTL     time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	svc *service.AuthService,
	github GitHubAuthenticator,
	tokenTTL time.Duration,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		github:       github,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// userResponse never includes the password hash or internal ids.
type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

type registerPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var p registerPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.Register(r.Context(), p.Email, p.Password, p.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type tokenPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleToken exchanges credentials for a token. The response body carries
// the token for API clients; nothing is stored server-side.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var p tokenPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.Login(r.Context(), p.Email, p.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": result.Token})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type profilePayload struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Email    *string `json:"email"`
}

func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var p profilePayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if p.Email != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("email", "Email cannot be changed."))
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, service.ProfileInput{
		Name:     p.Name,
		Password: p.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleGitHubLogin redirects to GitHub. The random state goes into a
// 10-minute HttpOnly cookie and is checked on callback (CSRF).
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback: GET /auth/github/callback?code=...&state=...
//
//  1. check state against the cookie, then clear the cookie
//  2. exchange the code for a GitHub profile
//  3. link or create the account and issue a token
//  4. set the token cookie and redirect home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, r, h.logger, apperror.ValidationFailed("state", "Invalid OAuth state."))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, h.logger, apperror.ValidationFailed("code", "Missing OAuth code."))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, r, h.logger, apperror.Unauthorized("GitHub authentication failed."))
		return
	}

	result, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout deletes the token cookie. Tokens are stateless, so a copy
// held elsewhere stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
