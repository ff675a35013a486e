package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	taskdomain "github.com/AlibekovAA/taskforge/backend/internal/task/domain"
	taskrepo "github.com/AlibekovAA/taskforge/backend/internal/task/repository"
)

type Tasks struct {
	mu    sync.Mutex
	tasks map[string]taskdomain.Task
}

var _ taskrepo.Repository = (*Tasks)(nil)

func NewTasks() *Tasks {
	return &Tasks{tasks: make(map[string]taskdomain.Task)}
}

func (s *Tasks) Create(_ context.Context, task taskdomain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *Tasks) List(_ context.Context, userID string, filter taskdomain.ListFilter) ([]taskdomain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]taskdomain.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			if filter.SortByPriorityDesc {
				return a.Priority > b.Priority
			}
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.SortByPriorityDesc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if filter.Skip >= len(out) {
		return []taskdomain.Task{}, nil
	}
	out = out[filter.Skip:]
	if filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Tasks) Get(_ context.Context, userID, id string) (taskdomain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return taskdomain.Task{}, taskrepo.ErrTaskNotFound
	}
	return t, nil
}

func (s *Tasks) Update(_ context.Context, userID, id string, patch taskdomain.Patch, updatedAt time.Time) (taskdomain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return taskdomain.Task{}, taskrepo.ErrTaskNotFound
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
	s.tasks[id] = t
	return t, nil
}

func (s *Tasks) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return taskrepo.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}
