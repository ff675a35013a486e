package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlibekovAA/taskforge/backend/internal/auth/service"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/taskforge/backend/internal/common/http"
	"github.com/AlibekovAA/taskforge/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
)

const refreshCookieName = "refresh_token"

var errMissingRefreshToken = errors.New("refresh token is missing")

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Handler struct {
	auth            *service.AuthService
	errorHandler    *commonhttp.ErrorHandler
	refreshTokenTTL time.Duration
	secureCookies   bool
}

// NewRouter serves the /api/auth endpoints. limiter may be nil. The refresh
// cookie is always marked Secure when secureCookies is set.
func NewRouter(
	auth *service.AuthService,
	resolver *jwtverify.Resolver,
	limiter *commonhttp.RateLimiter,
	refreshTokenTTL time.Duration,
	secureCookies bool,
	log *logger.Logger,
) chi.Router {
	h := &Handler{
		auth:            auth,
		errorHandler:    commonhttp.NewErrorHandler(log),
		refreshTokenTTL: refreshTokenTTL,
		secureCookies:   secureCookies,
	}

	limit := func(name string) func(http.Handler) http.Handler {
		if limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return limiter.Middleware(name)
	}

	r := chi.NewRouter()
	r.With(limit("register")).Post("/register", h.register)
	r.With(limit("login")).Post("/login", h.login)
	r.With(limit("refresh")).Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(jwtverify.Middleware(resolver, log))
		r.Get("/me", h.me)
		r.Delete("/me", h.deleteMe)
	})

	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, registerResponse{ID: string(user.ID), Email: user.Email})
}

// login accepts JSON {email, password} or an OAuth2 password grant form
// where the email travels as username.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			h.errorHandler.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
			return
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	pair, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writePair(w, r, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshTokenFrom(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if raw == "" {
		h.errorHandler.HandleError(w, r, service.ErrInvalidToken.WithCause(errMissingRefreshToken))
		return
	}

	pair, err := h.auth.Refresh(r.Context(), raw)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writePair(w, r, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshTokenFrom(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.auth.Logout(r.Context(), raw); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	clearRefreshCookie(w, h.secure(r))
	commonhttp.WriteNoContent(w)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteUnauthorized(w, commonhttp.TraceIDFromContext(r.Context()))
		return
	}

	user, err := h.auth.Me(r.Context(), principal.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, meResponse{
		ID:        string(user.ID),
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteUnauthorized(w, commonhttp.TraceIDFromContext(r.Context()))
		return
	}

	if err := h.auth.DeleteAccount(r.Context(), principal.ID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	clearRefreshCookie(w, h.secure(r))
	commonhttp.WriteNoContent(w)
}

func (h *Handler) writePair(w http.ResponseWriter, r *http.Request, status int, pair service.TokenPair) {
	setRefreshCookie(w, pair.RefreshToken, h.refreshTokenTTL, h.secure(r))
	commonhttp.WriteJSON(w, status, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// refreshTokenFrom reads {refresh_token} from the body, falling back to the
// refresh cookie when the body is empty.
func (h *Handler) refreshTokenFrom(r *http.Request) (string, error) {
	if r.ContentLength != 0 {
		var req refreshRequest
		if err := commonhttp.DecodeJSON(r, &req); err != nil {
			return "", err
		}
		if req.RefreshToken != "" {
			return req.RefreshToken, nil
		}
	}

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return "", nil
	}
	return cookie.Value, nil
}

func isFormRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func (h *Handler) secure(r *http.Request) bool {
	return h.secureCookies || r.TLS != nil
}

func setRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	if token == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/auth",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})
}

func clearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})
}
