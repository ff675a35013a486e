// Package memstore keeps users, refresh tokens and tasks in memory. It backs
// service tests that need transactional behaviour without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	authdomain "github.com/AlibekovAA/taskforge/backend/internal/auth/domain"
	authrepo "github.com/AlibekovAA/taskforge/backend/internal/auth/repository"
	userdomain "github.com/AlibekovAA/taskforge/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/taskforge/backend/internal/user/repository"
)

// Store is shared by the user and refresh token views so that deleting a
// user cascades like the schema does.
type Store struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	users  map[userdomain.ID]userdomain.User
	emails map[string]userdomain.ID
	tokens map[string]authdomain.RefreshToken

	// FailNextCreate makes the next refresh token insert fail with the given
	// error.
	FailNextCreate error
}

func New() *Store {
	return &Store{
		users:  make(map[userdomain.ID]userdomain.User),
		emails: make(map[string]userdomain.ID),
		tokens: make(map[string]authdomain.RefreshToken),
	}
}

func (s *Store) Users() *Users {
	return &Users{s: s}
}

func (s *Store) RefreshTokens() *RefreshTokens {
	return &RefreshTokens{s: s}
}

// TokenCount reports how many refresh token rows exist.
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Store) HasToken(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[hash]
	return ok
}

// PutToken inserts a row directly, bypassing any transaction.
func (s *Store) PutToken(token authdomain.RefreshToken) {
	s.mu.Lock()
	s.tokens[token.TokenHash] = token
	s.mu.Unlock()
}

// Tokens returns the rows ordered by creation time.
func (s *Store) Tokens() []authdomain.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authdomain.RefreshToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type Users struct {
	s *Store
}

var _ userrepo.Repository = (*Users)(nil)

func (u *Users) Create(_ context.Context, user userdomain.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.emails[user.Email]; ok {
		return userrepo.ErrEmailAlreadyExists
	}
	u.s.users[user.ID] = user
	u.s.emails[user.Email] = user.ID
	return nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (userdomain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	id, ok := u.s.emails[email]
	if !ok {
		return userdomain.User{}, userrepo.ErrUserNotFound
	}
	return u.s.users[id], nil
}

func (u *Users) FindByID(_ context.Context, id userdomain.ID) (userdomain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return userdomain.User{}, userrepo.ErrUserNotFound
	}
	return user, nil
}

func (u *Users) Delete(_ context.Context, id userdomain.ID) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return userrepo.ErrUserNotFound
	}
	delete(u.s.users, id)
	delete(u.s.emails, user.Email)
	for hash, t := range u.s.tokens {
		if t.UserID == string(id) {
			delete(u.s.tokens, hash)
		}
	}
	return nil
}

type RefreshTokens struct {
	s *Store
}

var _ authrepo.RefreshTokenRepository = (*RefreshTokens)(nil)

func (r *RefreshTokens) DeleteByTokenHash(_ context.Context, hash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.tokens[hash]
	delete(r.s.tokens, hash)
	return ok, nil
}

func (r *RefreshTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, t := range r.s.tokens {
		if !t.ExpiresAt.After(before) {
			delete(r.s.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokens) TxManager() authrepo.RefreshTokenTxManager {
	return &txManager{s: r.s}
}

type txManager struct {
	s *Store
}

// WithTx runs transactions one at a time. The token table is restored from a
// snapshot when fn fails or panics.
func (m *txManager) WithTx(ctx context.Context, fn func(context.Context, authrepo.RefreshTokenTx) error) (err error) {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.s.mu.Lock()
	snapshot := make(map[string]authdomain.RefreshToken, len(m.s.tokens))
	for k, v := range m.s.tokens {
		snapshot[k] = v
	}
	m.s.mu.Unlock()

	rollback := func() {
		m.s.mu.Lock()
		m.s.tokens = snapshot
		m.s.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err != nil {
			rollback()
		}
	}()

	return fn(ctx, &tx{s: m.s})
}

type tx struct {
	s *Store
}

func (t *tx) Create(_ context.Context, token authdomain.RefreshToken) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.FailNextCreate; err != nil {
		t.s.FailNextCreate = nil
		return err
	}
	if _, ok := t.s.tokens[token.TokenHash]; ok {
		return authrepo.ErrRefreshTokenExists
	}
	if _, ok := t.s.users[userdomain.ID(token.UserID)]; !ok {
		return userrepo.ErrUserNotFound
	}
	t.s.tokens[token.TokenHash] = token
	return nil
}

func (t *tx) TakeByTokenHash(_ context.Context, hash string) (authdomain.RefreshToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	token, ok := t.s.tokens[hash]
	if !ok {
		return authdomain.RefreshToken{}, authrepo.ErrRefreshTokenNotFound
	}
	delete(t.s.tokens, hash)
	return token, nil
}
