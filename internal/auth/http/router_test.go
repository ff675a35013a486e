package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/taskforge/backend/internal/auth/service"
	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/taskforge/backend/internal/common/http"
	"github.com/AlibekovAA/taskforge/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/testutil/memstore"
)

type testServer struct {
	handler http.Handler
	clock   *clock.MockClock
	store   *memstore.Store
}

func newTestServer(t *testing.T, limiter *commonhttp.RateLimiter) *testServer {
	t.Helper()

	clk := clock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	idGen := commoncrypto.NewUUIDGenerator()
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"), clk, idGen)
	require.NoError(t, err)
	hasher, err := commoncrypto.NewArgon2Hasher(commoncrypto.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})
	require.NoError(t, err)

	store := memstore.New()
	log := logger.NewWithWriter(io.Discard, "test", "ERROR")

	auth := service.NewAuthService(
		store.Users(),
		store.RefreshTokens(),
		service.NewRefreshTokenStore(codec, idGen, clk),
		codec,
		hasher,
		idGen,
		clk,
		15*time.Minute,
		7*24*time.Hour,
		log,
	)
	resolver := jwtverify.NewResolver(codec, store.Users(), nil)

	return &testServer{
		handler: NewRouter(auth, resolver, limiter, 7*24*time.Hour, false, log),
		clock:   clk,
		store:   store,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (s *testServer) login(t *testing.T) tokenResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/register", credentialsRequest{Email: "alice@example.com", Password: "correct horse"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/login", credentialsRequest{Email: "alice@example.com", Password: "correct horse"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[tokenResponse](t, rec)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/register", credentialsRequest{Email: "Alice@Example.com", Password: "correct horse"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[registerResponse](t, rec)
	assert.Equal(t, "alice@example.com", resp.Email)
	assert.NotEmpty(t, resp.ID)

	rec = s.do(t, http.MethodPost, "/register", credentialsRequest{Email: "alice@example.com", Password: "other"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_TAKEN", decode[commonhttp.ErrorEnvelope](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/register", credentialsRequest{Email: "nope", Password: "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[commonhttp.ErrorEnvelope](t, rec)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
	assert.Contains(t, env.Details["fields"], "email")

	rec = s.do(t, http.MethodPost, "/register", `{"email":"a@b.c","password":"x","admin":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	pair := s.login(t)

	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	rec := s.do(t, http.MethodPost, "/login", credentialsRequest{Email: "alice@example.com", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[commonhttp.ErrorEnvelope](t, rec).Code)
}

func TestLogin_Form(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t)

	form := url.Values{"username": {"alice@example.com"}, "password": {"correct horse"}, "grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[tokenResponse](t, rec).AccessToken)
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t, nil)
	pair := s.login(t)

	rec := s.do(t, http.MethodPost, "/refresh", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[tokenResponse](t, rec)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	rec = s.do(t, http.MethodPost, "/refresh", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "REFRESH_TOKEN_NOT_FOUND", decode[commonhttp.ErrorEnvelope](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/logout", refreshRequest{RefreshToken: next.RefreshToken}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.store.TokenCount())

	rec = s.do(t, http.MethodPost, "/logout", refreshRequest{RefreshToken: next.RefreshToken}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRefresh_Rejections(t *testing.T) {
	s := newTestServer(t, nil)
	pair := s.login(t)

	rec := s.do(t, http.MethodPost, "/refresh", refreshRequest{RefreshToken: pair.AccessToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = s.do(t, http.MethodPost, "/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.clock.Advance(8 * 24 * time.Hour)
	rec = s.do(t, http.MethodPost, "/refresh", refreshRequest{RefreshToken: pair.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "REFRESH_TOKEN_EXPIRED", decode[commonhttp.ErrorEnvelope](t, rec).Code)
}

func TestRefresh_FromCookie(t *testing.T) {
	s := newTestServer(t, nil)
	pair := s.login(t)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: pair.RefreshToken})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t, nil)
	pair := s.login(t)
	auth := map[string]string{"Authorization": "Bearer " + pair.AccessToken}

	rec := s.do(t, http.MethodGet, "/me", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decode[meResponse](t, rec).Email)

	rec = s.do(t, http.MethodGet, "/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[commonhttp.ErrorEnvelope](t, rec).Code)

	rec = s.do(t, http.MethodDelete, "/me", nil, auth)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.store.TokenCount())

	rec = s.do(t, http.MethodGet, "/me", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, commonhttp.NewRateLimiter(1, 2))

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/login", credentialsRequest{Email: "a@b.c", Password: "x"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/login", credentialsRequest{Email: "a@b.c", Password: "x"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(t, http.MethodPost, "/register", credentialsRequest{Email: "a@b.c", Password: "x"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
