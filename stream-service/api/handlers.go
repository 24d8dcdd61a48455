package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const (
	sseDataPrefix    = "data: "
	sseEventTerm     = "\n\n"
	sseOK            = ":ok\n\n"
	sseKeepalive     = ":keepalive\n\n"
	defaultKeepalive = 30 * time.Second
)

// Snapshots runs the live query for a user.
type Snapshots interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error)
}

// Authenticator verifies bearer tokens from the header or the query string.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
	UserIDFromToken(string) (string, error)
}

// Config tunes the stream endpoint.
type Config struct {
	Keepalive time.Duration
}

// Register wires up stream endpoints on the given Echo instance.
func Register(e *echo.Echo, snapshots Snapshots, auth Authenticator, hub *Hub, cfg Config, logger *log.Logger) {
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = defaultKeepalive
	}
	e.GET("/stream", streamTasks(snapshots, auth, hub, cfg, logger))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

// EncodeSnapshot renders the SSE payload of a live query result.
func EncodeSnapshot(tasks []domain.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return sonic.Marshal(domain.Snapshot{Tasks: tasks})
}

func authenticate(c echo.Context, auth Authenticator) (string, error) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return auth.UserIDFromAuthHeader(h)
	}
	// EventSource cannot set headers.
	return auth.UserIDFromToken(c.QueryParam("token"))
}

func streamTasks(snapshots Snapshots, auth Authenticator, hub *Hub, cfg Config, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()

		// Register before the first query so no change slips between them.
		ch := make(chan []byte, 1)
		hub.addClient(userID, ch)
		defer hub.removeClient(userID, ch)

		tasks, err := snapshots.ListRecent(ctx, userID, domain.LiveQueryLimit)
		if err != nil {
			logger.WithError(err).WithField("user", userID).Error("initial snapshot failed")
			return c.String(http.StatusInternalServerError, "snapshot failed: "+err.Error())
		}
		initial, err := EncodeSnapshot(tasks)
		if err != nil {
			return c.String(http.StatusInternalServerError, "snapshot failed: "+err.Error())
		}

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		res.WriteHeader(http.StatusOK)

		if _, err := res.Write([]byte(sseOK)); err != nil {
			return nil
		}
		if err := writeData(res, initial); err != nil {
			return nil
		}
		flusher.Flush()

		ticker := time.NewTicker(cfg.Keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := res.Write([]byte(sseKeepalive)); err != nil {
					return nil
				}
				flusher.Flush()
			case data := <-ch:
				if err := writeData(res, data); err != nil {
					logger.WithError(err).WithField("user", userID).Debug("stream write failed")
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeData(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte(sseDataPrefix)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte(sseEventTerm))
	return err
}
