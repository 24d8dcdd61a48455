package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/auth"
	"taskboard/domain"
)

const maxUpdateAttempts = 3

var errBodyTooLarge = errors.New("request body too large")

type handler struct {
	Deps
	log *log.Logger
	now func() time.Time
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, deps Deps, logger *log.Logger) {
	if logger == nil {
		panic("Logger is not initialized")
	}
	h := &handler{Deps: deps, log: logger, now: time.Now}

	e.GET("/healthz", h.healthz)

	g := e.Group("/api", DecompressRequest())
	g.GET("/user", h.getUser)
	g.POST("/user", h.signIn)
	g.POST("/user/logout", h.signOut)

	g.GET("/tasks", h.getTasks)
	g.POST("/tasks", h.createTask)
	g.POST("/tasks/bulk/delete", h.bulkDelete)
	g.POST("/tasks/bulk/status", h.bulkStatus)
	g.GET("/tasks/:id", h.getTask)
	g.PATCH("/tasks/:id", h.updateTask)
	g.DELETE("/tasks/:id", h.deleteTask)
	g.POST("/tasks/:id/move", h.moveTask)
	g.GET("/board", h.getBoard)

	g.GET("/preferences", h.getPreferences)
	g.PUT("/preferences", h.putPreferences)
}

func (h *handler) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// authenticate verifies the caller. When ok is false the 401 response has
// already been written and the handler must return without writing.
func (h *handler) authenticate(c echo.Context) (id auth.Identity, ok bool) {
	id, err := h.Auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		if werr := c.JSON(http.StatusUnauthorized, errorResponse{Error: "authentication failed: " + err.Error()}); werr != nil {
			h.log.WithError(werr).Debug("write unauthorized response")
		}
		return auth.Identity{}, false
	}
	return id, true
}

// fail writes the error envelope used by every write endpoint.
func (h *handler) fail(c echo.Context, op string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("op", op).Error("request failed")
	}
	return c.JSON(status, errorResponse{Error: op + " failed: " + err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTask), errors.Is(err, domain.ErrEmptyUpdate):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// readBody reads at most requestMaxSize bytes of the request body.
func readBody(c echo.Context) ([]byte, error) {
	lr := io.LimitReader(c.Request().Body, requestMaxSize+1)
	raw, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(raw) > requestMaxSize {
		return nil, errBodyTooLarge
	}
	return raw, nil
}

// decodeBody validates the body against the named schema and decodes it into
// v, rejecting unknown fields.
func decodeBody(c echo.Context, schema string, v any) error {
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	return decodeRaw(raw, schema, v)
}

func decodeRaw(raw []byte, schema string, v any) error {
	if err := domain.ValidateJSON(schema, raw); err != nil {
		return err
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTask, err)
	}
	return nil
}

// emit announces a committed write. Failures are logged only: the write
// already happened and the next change re-delivers the full snapshot anyway.
func (h *handler) emit(ctx context.Context, userID, taskID, kind string) {
	if h.Notifier == nil {
		return
	}
	ev := domain.ChangeEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    taskID,
		Type:      kind,
		Timestamp: nextTimestamp(),
	}
	if err := h.Notifier.Notify(ctx, ev); err != nil {
		h.log.WithError(err).WithFields(log.Fields{"user": userID, "task": taskID, "type": kind}).Warn("change notification failed")
	}
}

// mutateTask loads a task, applies mutate and writes it back with an ETag
// guard, retrying on concurrent modification. It reports whether a write
// happened.
func (h *handler) mutateTask(ctx context.Context, userID, taskID string, mutate func(t *domain.Task) (bool, error)) (domain.Task, bool, error) {
	for attempt := 1; ; attempt++ {
		t, etag, err := h.Tasks.GetTask(ctx, userID, taskID)
		if err != nil {
			return domain.Task{}, false, err
		}
		changed, err := mutate(&t)
		if err != nil || !changed {
			return t, false, err
		}
		err = h.Tasks.ReplaceTask(ctx, t, etag)
		if err == nil {
			return t, true, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= maxUpdateAttempts {
			return domain.Task{}, false, err
		}
		h.log.WithFields(log.Fields{"user": userID, "task": taskID, "attempt": attempt}).Debug("task changed concurrently; retrying")
	}
}
