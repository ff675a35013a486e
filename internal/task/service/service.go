package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
	"github.com/AlibekovAA/taskforge/backend/internal/task/domain"
	"github.com/AlibekovAA/taskforge/backend/internal/task/repository"
)

type TaskService struct {
	repo        repository.Repository
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	log         *logger.Logger
}

func NewTaskService(repo repository.Repository, idGenerator commoncrypto.IDGenerator, clock clock.Clock, log *logger.Logger) *TaskService {
	return &TaskService{
		repo:        repo,
		idGenerator: idGenerator,
		clock:       clock,
		log:         log,
	}
}

func (s *TaskService) Create(ctx context.Context, userID string, input CreateInput) (domain.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validateStruct(input); err != nil {
		record("create", "invalid")
		return domain.Task{}, err
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		record("create", "error")
		return domain.Task{}, commonerrors.ErrInternalError.WithCause(err)
	}

	now := s.clock.Now().UTC()
	task := domain.Task{
		ID:        id,
		UserID:    userID,
		Title:     input.Title,
		Priority:  input.Priority,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "task_create_failed",
		}).Errorf("task create failed: %v", err)
		record("create", "error")
		return domain.Task{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"task_id": task.ID,
		"action":  "task_create_success",
	}).Debug("task created")
	record("create", "success")

	return task, nil
}

func (s *TaskService) List(ctx context.Context, userID string, input ListInput) ([]domain.Task, error) {
	if err := validateStruct(input); err != nil {
		record("list", "invalid")
		return nil, err
	}

	tasks, err := s.repo.List(ctx, userID, domain.ListFilter{
		Skip:               input.Skip,
		Limit:              input.Limit,
		Completed:          input.Completed,
		SortByPriorityDesc: input.SortByPriorityDesc,
	})
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "task_list_failed",
		}).Errorf("task list failed: %v", err)
		record("list", "error")
		return nil, commonerrors.ErrDatabaseError.WithCause(err)
	}

	record("list", "success")
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (domain.Task, error) {
	task, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return domain.Task{}, s.repoError(ctx, "get", userID, id, err)
	}
	record("get", "success")
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, userID, id string, input UpdateInput) (domain.Task, error) {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		input.Title = &title
	}
	if err := validateStruct(input); err != nil {
		record("update", "invalid")
		return domain.Task{}, err
	}

	patch := domain.Patch{Title: input.Title, Priority: input.Priority, Completed: input.Completed}
	if patch.IsEmpty() {
		return s.Get(ctx, userID, id)
	}

	task, err := s.repo.Update(ctx, userID, id, patch, s.clock.Now().UTC())
	if err != nil {
		return domain.Task{}, s.repoError(ctx, "update", userID, id, err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"task_id": id,
		"action":  "task_update_success",
	}).Debug("task updated")
	record("update", "success")

	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return s.repoError(ctx, "delete", userID, id, err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"task_id": id,
		"action":  "task_delete_success",
	}).Debug("task deleted")
	record("delete", "success")

	return nil
}

func (s *TaskService) repoError(ctx context.Context, operation, userID, id string, err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		record(operation, "not_found")
		return ErrTaskNotFound
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"task_id": id,
		"action":  "task_" + operation + "_failed",
	}).Errorf("task %s failed: %v", operation, err)
	record(operation, "error")

	return commonerrors.ErrDatabaseError.WithCause(err)
}

func record(operation, outcome string) {
	metrics.TaskOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
