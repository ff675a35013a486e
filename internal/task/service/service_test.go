package service

import (
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/task/domain"
	"github.com/AlibekovAA/taskforge/backend/internal/task/repository"
)

type mockRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	err   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{tasks: make(map[string]domain.Task)}
}

func (m *mockRepo) Create(_ context.Context, task domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *mockRepo) List(_ context.Context, userID string, filter domain.ListFilter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Task
	for _, t := range m.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.SortByPriorityDesc {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Priority < out[j].Priority
	})
	if filter.Skip >= len(out) {
		return []domain.Task{}, nil
	}
	out = out[filter.Skip:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, userID, id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return domain.Task{}, repository.ErrTaskNotFound
	}
	return t, nil
}

func (m *mockRepo) Update(_ context.Context, userID, id string, patch domain.Patch, updatedAt time.Time) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return domain.Task{}, repository.ErrTaskNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	t.UpdatedAt = updatedAt
	m.tasks[id] = t
	return t, nil
}

func (m *mockRepo) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func newTestService() (*TaskService, *mockRepo, *clock.MockClock) {
	repo := newMockRepo()
	clk := clock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	log := logger.NewWithWriter(io.Discard, "test", "ERROR")
	return NewTaskService(repo, commoncrypto.NewUUIDGenerator(), clk, log), repo, clk
}

func ptr[T any](v T) *T { return &v }

func TestCreate(t *testing.T) {
	svc, _, clk := newTestService()

	task, err := svc.Create(context.Background(), "u-1", CreateInput{Title: "  buy milk ", Priority: 3})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Title)
	assert.Equal(t, 3, task.Priority)
	assert.False(t, task.Completed)
	assert.Equal(t, clk.Now(), task.CreatedAt)
	assert.NotEmpty(t, task.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	tests := []CreateInput{
		{Title: "", Priority: 1},
		{Title: "   ", Priority: 1},
		{Title: strings.Repeat("x", 201), Priority: 1},
		{Title: "ok", Priority: math.MaxInt32 + 1},
	}
	for _, in := range tests {
		_, err := svc.Create(context.Background(), "u-1", in)
		assert.ErrorIs(t, err, ErrValidation, "input %+v", in)
	}
}

func TestCreate_PriorityIsUnbounded(t *testing.T) {
	svc, _, _ := newTestService()

	for _, p := range []int{-1, 11, 1000, math.MinInt32} {
		task, err := svc.Create(context.Background(), "u-1", CreateInput{Title: "ok", Priority: p})
		require.NoError(t, err, "priority %d", p)
		assert.Equal(t, p, task.Priority)
	}

	created, err := svc.Create(context.Background(), "u-1", CreateInput{Title: "ok"})
	require.NoError(t, err)
	updated, err := svc.Update(context.Background(), "u-1", created.ID, UpdateInput{Priority: ptr(-5)})
	require.NoError(t, err)
	assert.Equal(t, -5, updated.Priority)
}

func TestList(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i, p := range []int{1, 5, 3} {
		task, err := svc.Create(ctx, "u-1", CreateInput{Title: "t", Priority: p})
		require.NoError(t, err)
		if i == 0 {
			_, err = svc.Update(ctx, "u-1", task.ID, UpdateInput{Completed: ptr(true)})
			require.NoError(t, err)
		}
	}
	_, err := svc.Create(ctx, "u-2", CreateInput{Title: "other", Priority: 10})
	require.NoError(t, err)

	tasks, err := svc.List(ctx, "u-1", ListInput{Limit: 20, SortByPriorityDesc: true})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int{5, 3, 1}, []int{tasks[0].Priority, tasks[1].Priority, tasks[2].Priority})

	tasks, err = svc.List(ctx, "u-1", ListInput{Limit: 20, Completed: ptr(false)})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, 3, tasks[0].Priority)

	tasks, err = svc.List(ctx, "u-1", ListInput{Skip: 1, Limit: 1, SortByPriorityDesc: true})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3, tasks[0].Priority)

	_, err = svc.List(ctx, "u-1", ListInput{Limit: 0})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.List(ctx, "u-1", ListInput{Limit: 101})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.List(ctx, "u-1", ListInput{Skip: -1, Limit: 10})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOtherUsersTasksAreNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, "owner", CreateInput{Title: "secret", Priority: 1})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "intruder", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.Update(ctx, "intruder", task.ID, UpdateInput{Title: ptr("mine now")})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	err = svc.Delete(ctx, "intruder", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	got, err := svc.Get(ctx, "owner", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Title)
}

func TestUpdate_Partial(t *testing.T) {
	svc, _, clk := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, "u-1", CreateInput{Title: "draft", Priority: 2})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	updated, err := svc.Update(ctx, "u-1", task.ID, UpdateInput{Priority: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, "draft", updated.Title)
	assert.Equal(t, 7, updated.Priority)
	assert.Equal(t, clk.Now(), updated.UpdatedAt)

	unchanged, err := svc.Update(ctx, "u-1", task.ID, UpdateInput{})
	require.NoError(t, err)
	assert.Equal(t, updated, unchanged)

	_, err = svc.Update(ctx, "u-1", task.ID, UpdateInput{Title: ptr("  ")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, "u-1", CreateInput{Title: "x", Priority: 0})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u-1", task.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "u-1", task.ID), ErrTaskNotFound)
}

func TestRepositoryFailureIsInternal(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.err = errors.New("connection reset")

	_, err := svc.Create(context.Background(), "u-1", CreateInput{Title: "x", Priority: 0})
	assert.ErrorIs(t, err, commonerrors.ErrDatabaseError)

	_, err = svc.List(context.Background(), "u-1", ListInput{Limit: 5})
	assert.ErrorIs(t, err, commonerrors.ErrDatabaseError)
}
