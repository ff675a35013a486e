package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "github.com/AlibekovAA/taskforge/backend/internal/auth/domain"
	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
	"github.com/AlibekovAA/taskforge/backend/internal/testutil/memstore"
	userdomain "github.com/AlibekovAA/taskforge/backend/internal/user/domain"
)

var (
	testKey   = []byte("0123456789abcdef0123456789abcdef")
	testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

type fixture struct {
	svc    *AuthService
	store  *memstore.Store
	codec  *token.Codec
	clock  *clock.MockClock
	hasher *commoncrypto.Argon2Hasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewMockClock(testStart)
	idGen := commoncrypto.NewUUIDGenerator()

	codec, err := token.NewCodec(testKey, clk, idGen)
	require.NoError(t, err)

	hasher, err := commoncrypto.NewArgon2Hasher(commoncrypto.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})
	require.NoError(t, err)

	store := memstore.New()
	log := logger.NewWithWriter(io.Discard, "test", "ERROR")

	svc := NewAuthService(
		store.Users(),
		store.RefreshTokens(),
		NewRefreshTokenStore(codec, idGen, clk),
		codec,
		hasher,
		idGen,
		clk,
		testAccessTTL,
		testRefreshTTL,
		log,
	)

	return &fixture{svc: svc, store: store, codec: codec, clock: clk, hasher: hasher}
}

func (f *fixture) registerAndLogin(t *testing.T) TokenPair {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	return pair
}

func TestRegister_NormalizesEmailAndHashesPassword(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), RegisterInput{Email: "  Alice@Example.COM ", Password: "correct horse"})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.True(t, f.hasher.Verify("correct horse", user.PasswordHash))
	assert.Equal(t, testStart, user.CreatedAt)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "one"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "ALICE@example.com", Password: "two"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "secret"},
		{"not an email", "alice", "secret"},
		{"empty password", "alice@example.com", ""},
		{"password too long", "alice@example.com", string(make([]byte, 1025))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), RegisterInput{Email: tt.email, Password: tt.password})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLogin_IssuesPairAndStoresRefreshRow(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)

	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(testAccessTTL.Seconds()), pair.ExpiresIn)

	access, err := f.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, token.KindAccess, access.Kind)

	refresh, err := f.codec.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, token.KindRefresh, refresh.Kind)
	assert.Equal(t, access.Subject, refresh.Subject)

	rows := f.store.Tokens()
	require.Len(t, rows, 1)
	assert.Equal(t, HashRefreshToken(pair.RefreshToken), rows[0].TokenHash)
	assert.Equal(t, refresh.Subject, rows[0].UserID)
	assert.True(t, rows[0].ExpiresAt.Equal(refresh.ExpiresAt.Time))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 0, f.store.TokenCount())
}

func TestLogin_UnknownEmailStillVerifiesDummyDigest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "x"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	assert.NotEmpty(t, f.svc.dummyDigest)
}

func TestLogin_DetectsOutdatedDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := commoncrypto.NewArgon2Hasher(commoncrypto.Argon2Params{MemoryKiB: 512, Iterations: 1, Parallelism: 1})
	require.NoError(t, err)
	digest, err := old.Hash("correct horse")
	require.NoError(t, err)

	require.NoError(t, f.store.Users().Create(ctx, userFixture("u-old", "old@example.com", digest)))

	before := testutil.ToFloat64(metrics.PasswordRehashNeeded)
	_, err = f.svc.Login(ctx, LoginInput{Email: "old@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PasswordRehashNeeded))
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)

	next, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
	assert.False(t, f.store.HasToken(HashRefreshToken(pair.RefreshToken)))
	assert.True(t, f.store.HasToken(HashRefreshToken(next.RefreshToken)))
	assert.Equal(t, 1, f.store.TokenCount())
}

func TestRefresh_ReplayIsRejected(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestRefresh_ConcurrentUseSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrRefreshTokenNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, notFound)
	assert.Equal(t, 1, f.store.TokenCount())
}

func TestRefresh_ExpiredTokenRemovesRow(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)

	f.clock.Advance(testRefreshTTL)

	_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	assert.Equal(t, 0, f.store.TokenCount())
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)

	_, err := f.svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	assert.Equal(t, 1, f.store.TokenCount())
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestRefresh_RowClaimsMismatchRollsBack(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t)

	signed, claims, err := f.codec.Issue("someone-else", token.KindRefresh, testRefreshTTL)
	require.NoError(t, err)

	row := authdomain.RefreshToken{
		ID:        "row-1",
		TokenHash: HashRefreshToken(signed),
		UserID:    "another-user",
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: claims.IssuedAt.Time,
	}
	f.store.PutToken(row)

	_, err = f.svc.Refresh(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, f.store.HasToken(row.TokenHash))
}

func TestRefresh_IssueFailureKeepsOldToken(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)
	ctx := context.Background()

	f.store.FailNextCreate = errors.New("disk full")

	_, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, f.store.HasToken(HashRefreshToken(pair.RefreshToken)))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_CancelledContext(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, f.store.HasToken(HashRefreshToken(pair.RefreshToken)))
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	assert.Equal(t, 0, f.store.TokenCount())

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, "garbage"))

	_, err := f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestDeleteAccount_RemovesTokens(t *testing.T) {
	f := newFixture(t)
	pair := f.registerAndLogin(t)
	ctx := context.Background()

	claims, err := f.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	id := userIDFrom(claims)

	me, err := f.svc.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	require.NoError(t, f.svc.DeleteAccount(ctx, id))
	assert.Equal(t, 0, f.store.TokenCount())

	_, err = f.svc.Me(ctx, id)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	err = f.svc.DeleteAccount(ctx, id)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func userFixture(id, email, digest string) userdomain.User {
	return userdomain.User{ID: userdomain.ID(id), Email: email, PasswordHash: digest, CreatedAt: testStart}
}

func userIDFrom(claims *token.Claims) userdomain.ID {
	return userdomain.ID(claims.Subject)
}
