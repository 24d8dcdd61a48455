package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
)

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r *bulkResponse) add(id string, err error) {
	if err != nil {
		r.Results = append(r.Results, bulkResult{ID: id, Error: err.Error()})
		r.Failed++
		return
	}
	r.Results = append(r.Results, bulkResult{ID: id, OK: true})
	r.Succeeded++
}

// bulkDelete deletes each listed task independently. A failure on one id does
// not stop the others.
func (h *handler) bulkDelete(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()

	var req bulkRequest
	if err := decodeBody(c, domain.SchemaBulk, &req); err != nil {
		return h.fail(c, "bulk delete", err)
	}
	resp := bulkResponse{Results: make([]bulkResult, 0, len(req.IDs))}
	for _, taskID := range uniqueIDs(req.IDs) {
		err := h.Tasks.DeleteTask(ctx, id.Subject, taskID)
		resp.add(taskID, err)
		if err == nil {
			h.emit(ctx, id.Subject, taskID, domain.TaskDeleted)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// bulkStatus moves each listed task to the requested status column.
func (h *handler) bulkStatus(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()

	var req bulkRequest
	if err := decodeBody(c, domain.SchemaBulk, &req); err != nil {
		return h.fail(c, "bulk status", err)
	}
	if req.Status == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bulk status failed: status is required"})
	}
	status := req.Status
	now := h.now()
	resp := bulkResponse{Results: make([]bulkResult, 0, len(req.IDs))}
	for _, taskID := range uniqueIDs(req.IDs) {
		_, changed, err := h.mutateTask(ctx, id.Subject, taskID, func(t *domain.Task) (bool, error) {
			fields, err := t.Apply(domain.TaskUpdate{Status: &status}, id.Subject, now)
			return len(fields) > 0, err
		})
		resp.add(taskID, err)
		if changed {
			h.emit(ctx, id.Subject, taskID, domain.TaskUpdated)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
