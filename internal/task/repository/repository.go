package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlibekovAA/taskforge/backend/internal/common/db"
	"github.com/AlibekovAA/taskforge/backend/internal/task/domain"
)

var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, user_id, title, priority, completed, created_at, updated_at`

// Repository methods are all scoped by owner: a task that exists but belongs
// to someone else is reported as ErrTaskNotFound.
type Repository interface {
	Create(ctx context.Context, task domain.Task) error
	List(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Task, error)
	Get(ctx context.Context, userID, id string) (domain.Task, error)
	Update(ctx context.Context, userID, id string, patch domain.Patch, updatedAt time.Time) (domain.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

type PgRepository struct {
	pool db.Conn
}

func NewPgRepository(pool db.Conn) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, task domain.Task) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID,
		task.UserID,
		task.Title,
		task.Priority,
		task.Completed,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return db.HandleExecError(err, "create task", start)
}

func (r *PgRepository) List(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Task, error) {
	var (
		query strings.Builder
		args  = []interface{}{userID}
	)

	query.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`)
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		fmt.Fprintf(&query, ` AND completed = $%d`, len(args))
	}
	if filter.SortByPriorityDesc {
		query.WriteString(` ORDER BY priority DESC, created_at DESC, id`)
	} else {
		query.WriteString(` ORDER BY priority ASC, created_at ASC, id`)
	}
	args = append(args, filter.Limit, filter.Skip)
	fmt.Fprintf(&query, ` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	start := time.Now()
	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, db.HandleQueryError(err, nil, "list tasks", start)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0, filter.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, db.HandleQueryError(err, nil, "list tasks", start)
		}
		tasks = append(tasks, task)
	}
	if err := db.HandleQueryError(rows.Err(), nil, "list tasks", start); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *PgRepository) Get(ctx context.Context, userID, id string) (domain.Task, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)

	task, err := scanTask(row)
	if err := db.HandleQueryError(err, ErrTaskNotFound, "get task", start); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// Update applies patch in one statement and returns the stored result.
func (r *PgRepository) Update(ctx context.Context, userID, id string, patch domain.Patch, updatedAt time.Time) (domain.Task, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`UPDATE tasks
		 SET title = COALESCE($3, title),
		     priority = COALESCE($4, priority),
		     completed = COALESCE($5, completed),
		     updated_at = $6
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+taskColumns,
		id,
		userID,
		patch.Title,
		patch.Priority,
		patch.Completed,
		updatedAt,
	)

	task, err := scanTask(row)
	if err := db.HandleQueryError(err, ErrTaskNotFound, "update task", start); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (r *PgRepository) Delete(ctx context.Context, userID, id string) error {
	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err := db.HandleExecError(err, "delete task", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Priority,
		&task.Completed,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}
