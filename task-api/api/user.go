package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
)

func (h *handler) getUser(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	resp := userResponse{ID: id.Subject}
	u, err := h.Profiles.GetUser(c.Request().Context(), id.Subject)
	switch {
	case err == nil:
		resp.Profile = &u
	case errors.Is(err, domain.ErrNotFound):
		resp.Profile = &domain.User{ID: id.Subject, Name: id.Name, Email: id.Email}
	default:
		return h.fail(c, "get user", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// signIn mirrors the identity provider profile into the users table and
// records the login. Body fields override the token claims.
func (h *handler) signIn(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()

	raw, err := readBody(c)
	if err != nil {
		return h.fail(c, "sign in", err)
	}
	var req signInRequest
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := decodeRaw(raw, domain.SchemaUser, &req); err != nil {
			return h.fail(c, "sign in", err)
		}
	}

	u := domain.User{ID: id.Subject, Name: id.Name, Email: id.Email, LastLoginAt: h.now().UTC()}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if err := h.Profiles.UpsertUser(ctx, u); err != nil {
		return h.fail(c, "sign in", err)
	}
	h.log.WithField("user", id.Subject).Info("user signed in")
	h.emit(ctx, id.Subject, "", domain.UserLoggedIn)
	return c.JSON(http.StatusOK, userResponse{ID: id.Subject, Profile: &u})
}

func (h *handler) signOut(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	h.log.WithField("user", id.Subject).Info("user signed out")
	h.emit(c.Request().Context(), id.Subject, "", domain.UserLoggedOut)
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) getPreferences(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	p, err := h.Profiles.FetchPreferences(c.Request().Context(), id.Subject)
	if err != nil {
		return h.fail(c, "get preferences", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *handler) putPreferences(c echo.Context) error {
	id, ok := h.authenticate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()

	var p domain.Preferences
	if err := decodeBody(c, domain.SchemaPreferences, &p); err != nil {
		return h.fail(c, "save preferences", err)
	}
	p, err := p.Normalize()
	if err != nil {
		return h.fail(c, "save preferences", err)
	}
	if err := h.Profiles.SavePreferences(ctx, id.Subject, p); err != nil {
		return h.fail(c, "save preferences", err)
	}
	h.emit(ctx, id.Subject, "", domain.PrefsUpdated)
	return c.JSON(http.StatusOK, p)
}
