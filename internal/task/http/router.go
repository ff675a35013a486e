package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlibekovAA/taskforge/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/taskforge/backend/internal/common/http"
	"github.com/AlibekovAA/taskforge/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/task/domain"
	"github.com/AlibekovAA/taskforge/backend/internal/task/service"
)

type taskResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Priority  int       `json:"priority"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(t domain.Task) taskResponse {
	return taskResponse{
		ID:        t.ID,
		Title:     t.Title,
		Priority:  t.Priority,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type Handler struct {
	tasks        *service.TaskService
	errorHandler *commonhttp.ErrorHandler
}

// NewRouter serves /api/tasks. Every route requires an access token and acts
// on the caller's own tasks only.
func NewRouter(tasks *service.TaskService, resolver *jwtverify.Resolver, log *logger.Logger) chi.Router {
	h := &Handler{
		tasks:        tasks,
		errorHandler: commonhttp.NewErrorHandler(log),
	}

	r := chi.NewRouter()
	r.Use(jwtverify.Middleware(resolver, log))

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
	})

	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := jwtverify.FromContext(r.Context())

	var req service.CreateInput
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	task, err := h.tasks.Create(r.Context(), string(principal.ID), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, toResponse(task))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := jwtverify.FromContext(r.Context())

	input, err := parseListQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	tasks, err := h.tasks.List(r.Context(), string(principal.ID), input)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toResponse(t))
	}
	commonhttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := jwtverify.FromContext(r.Context())

	id, err := commonhttp.UUIDParam(r, "taskID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	task, err := h.tasks.Get(r.Context(), string(principal.ID), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toResponse(task))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := jwtverify.FromContext(r.Context())

	id, err := commonhttp.UUIDParam(r, "taskID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var req service.UpdateInput
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), string(principal.ID), id, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toResponse(task))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := jwtverify.FromContext(r.Context())

	id, err := commonhttp.UUIDParam(r, "taskID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.tasks.Delete(r.Context(), string(principal.ID), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteNoContent(w)
}

func parseListQuery(r *http.Request) (service.ListInput, error) {
	q := r.URL.Query()
	input := service.ListInput{
		Skip:               0,
		Limit:              constants.TaskListDefaultSize,
		SortByPriorityDesc: true,
	}

	if raw := q.Get("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return input, invalidQuery("skip", err)
		}
		input.Skip = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return input, invalidQuery("limit", err)
		}
		input.Limit = v
	}
	if raw := q.Get("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return input, invalidQuery("completed", err)
		}
		input.Completed = &v
	}
	if raw := q.Get("sort_by_priority_desc"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return input, invalidQuery("sort_by_priority_desc", err)
		}
		input.SortByPriorityDesc = v
	}

	return input, nil
}

func invalidQuery(name string, err error) error {
	return commonerrors.ErrValidationFailed.WithCause(fmt.Errorf("query parameter %s: %w", name, err))
}
