package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
)

// filterFromQuery builds a TaskFilter from q, status, category, priority and
// dueDate query parameters.
func filterFromQuery(c echo.Context) (domain.TaskFilter, error) {
	f := domain.TaskFilter{SearchQuery: strings.TrimSpace(c.QueryParam("q"))}
	var err error
	if v := c.QueryParam("status"); v != "" {
		if f.Status, err = domain.ParseStatus(v); err != nil {
			return f, err
		}
	}
	if v := c.QueryParam("category"); v != "" {
		if f.Category, err = domain.ParseCategory(v); err != nil {
			return f, err
		}
	}
	if v := c.QueryParam("priority"); v != "" {
		if f.Priority, err = domain.ParsePriority(v); err != nil {
			return f, err
		}
	}
	if v := c.QueryParam("dueDate"); v != "" {
		if f.DueDate, err = domain.NormalizeDueDate(v); err != nil {
			return f, err
		}
	}
	return f, nil
}

// listTasks runs the live query for the caller and applies the request
// filter. Timings are reported through taskRequestMetrics.
func (h *handler) listTasks(c echo.Context, route string, respond func(tasks []domain.Task) any) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newTaskRequestMetrics(ctx, h.log, route)
	if spanCtx != nil {
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
	}
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	id, authErr := h.Auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "authentication failed: " + authErr.Error()})
	}

	filter, filterErr := filterFromQuery(c)
	if filterErr != nil {
		metrics.SetErrorStage("invalid_filter")
		return h.fail(c, "list tasks", filterErr)
	}
	metrics.SetFiltered(filter != domain.TaskFilter{})

	fetchStart := time.Now()
	tasks, fetchErr := h.Tasks.ListRecent(ctx, id.Subject, domain.LiveQueryLimit)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		return h.fail(c, "list tasks", fetchErr)
	}
	tasks = filter.Apply(tasks)
	metrics.SetTasksReturned(len(tasks))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, respond(tasks))
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func (h *handler) getTasks(c echo.Context) error {
	sections := c.QueryParam("view") == "sections"
	return h.listTasks(c, "/api/tasks", func(tasks []domain.Task) any {
		resp := tasksResponse{Tasks: tasks, Total: len(tasks)}
		if sections {
			resp.Sections = domain.GroupByStatus(tasks).Columns
		}
		return resp
	})
}

func (h *handler) getBoard(c echo.Context) error {
	return h.listTasks(c, "/api/board", func(tasks []domain.Task) any {
		return domain.GroupByStatus(tasks)
	})
}

func (h *handler) getTask(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	t, _, err := h.Tasks.GetTask(c.Request().Context(), id.Subject, c.Param("id"))
	if err != nil {
		return h.fail(c, "get task", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handler) createTask(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()

	var draft domain.TaskDraft
	if err := decodeBody(c, domain.SchemaTaskCreate, &draft); err != nil {
		return h.fail(c, "create task", err)
	}

	key := strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
	if key != "" && h.Deduper != nil {
		added, err := h.Deduper.Add(ctx, id.Subject, key)
		if err != nil {
			return h.fail(c, "create task", err)
		}
		if !added {
			return h.replayCreate(c, id.Subject, key)
		}
	}

	t, err := domain.NewTask(id.Subject, draft, h.now())
	if err == nil {
		err = h.Tasks.InsertTask(ctx, t)
	}
	if err != nil {
		if key != "" && h.Deduper != nil {
			if rerr := h.Deduper.Remove(ctx, id.Subject, key); rerr != nil {
				h.log.WithError(rerr).WithField("user", id.Subject).Error("idempotency rollback failed")
			}
		}
		return h.fail(c, "create task", err)
	}
	if key != "" && h.Deduper != nil {
		if err := h.Deduper.Bind(ctx, id.Subject, key, t.ID); err != nil {
			h.log.WithError(err).WithField("user", id.Subject).Warn("idempotency bind failed")
		}
	}

	h.emit(ctx, id.Subject, t.ID, domain.TaskCreated)
	return c.JSON(http.StatusCreated, t)
}

// replayCreate answers a retried create with the task made the first time.
func (h *handler) replayCreate(c echo.Context, userID, key string) error {
	ctx := c.Request().Context()
	taskID, err := h.Deduper.Lookup(ctx, userID, key)
	if err != nil {
		return h.fail(c, "create task", err)
	}
	if taskID == "" {
		return c.JSON(http.StatusConflict, errorResponse{Error: "create task failed: a request with this idempotency key is in progress"})
	}
	t, _, err := h.Tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return h.fail(c, "create task", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handler) updateTask(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()

	var upd domain.TaskUpdate
	if err := decodeBody(c, domain.SchemaTaskUpdate, &upd); err != nil {
		return h.fail(c, "update task", err)
	}
	if upd.Empty() {
		return h.fail(c, "update task", domain.ErrEmptyUpdate)
	}

	now := h.now()
	t, changed, err := h.mutateTask(ctx, id.Subject, c.Param("id"), func(t *domain.Task) (bool, error) {
		fields, err := t.Apply(upd, id.Subject, now)
		return len(fields) > 0, err
	})
	if err != nil {
		return h.fail(c, "update task", err)
	}
	if changed {
		h.emit(ctx, id.Subject, t.ID, domain.TaskUpdated)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handler) deleteTask(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	taskID := c.Param("id")
	if err := h.Tasks.DeleteTask(ctx, id.Subject, taskID); err != nil {
		return h.fail(c, "delete task", err)
	}
	h.emit(ctx, id.Subject, taskID, domain.TaskDeleted)
	return c.NoContent(http.StatusNoContent)
}

// moveTask interprets the result of a board drag. Drops outside any column
// and drops into the task's own column do not write.
func (h *handler) moveTask(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	taskID := c.Param("id")

	var drop domain.DropResult
	if err := decodeBody(c, domain.SchemaMove, &drop); err != nil {
		return h.fail(c, "move task", err)
	}
	if drop.DraggableID != "" && drop.DraggableID != taskID {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "move task failed: draggableId does not match task"})
	}
	target, ok, err := drop.TargetStatus()
	if err != nil {
		return h.fail(c, "move task", err)
	}
	if !ok {
		return c.JSON(http.StatusOK, moveResponse{Moved: false})
	}

	now := h.now()
	t, moved, err := h.mutateTask(ctx, id.Subject, taskID, func(t *domain.Task) (bool, error) {
		upd, ok := domain.MoveUpdate(*t, target)
		if !ok {
			return false, nil
		}
		fields, err := t.Apply(upd, id.Subject, now)
		return len(fields) > 0, err
	})
	if err != nil {
		return h.fail(c, "move task", err)
	}
	if moved {
		h.emit(ctx, id.Subject, t.ID, domain.TaskMoved)
	}
	return c.JSON(http.StatusOK, moveResponse{Moved: moved, Task: &t})
}
