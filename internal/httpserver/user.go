package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tshop/backend/internal/events"
	"github.com/tshop/backend/internal/logging"
	"github.com/tshop/backend/internal/service"
	"github.com/tshop/backend/internal/transport"
	"github.com/tshop/backend/internal/util"
)

type UserHTTP struct {
	Svc      *service.UserService
	Producer *events.Producer
}

func (h *UserHTTP) publish(c echo.Context, key string, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func userIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "user id must be a positive integer")
	}
	return uint(id), nil
}

// Me returns the acting user's own profile.
func (h *UserHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.me")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("profile_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := h.Svc.Profile(ctx, userID)
	if err != nil {
		l.Warn("profile_error", "user_id", userID, "error", err)
		return serviceHTTPError(err)
	}

	return respond(c, http.StatusOK, "profile retrieved", user)
}

// UpdateMe lets a user change their own name, email or password. Role is
// deliberately dropped here; only the admin route may change it.
func (h *UserHTTP) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update_me")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("update_profile_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_profile_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Update(ctx, userID, service.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		l.Warn("update_profile_error", "user_id", userID, "error", err)
		return serviceHTTPError(err)
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_updated",
		"user_id": user.ID,
	})

	l.Info("update_profile_success", "user_id", user.ID)
	return respond(c, http.StatusOK, "profile updated", user)
}

// DeleteMe removes the acting user's account.
func (h *UserHTTP) DeleteMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete_me")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("delete_profile_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Svc.Delete(ctx, userID); err != nil {
		l.Warn("delete_profile_error", "user_id", userID, "error", err)
		return serviceHTTPError(err)
	}

	h.publish(c, fmt.Sprint(userID), map[string]any{
		"type":    "user_deleted",
		"user_id": userID,
	})

	l.Info("delete_profile_success", "user_id", userID)
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, users, err := h.Svc.List(ctx, limit, offset)
	if err != nil {
		l.Error("list_users_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": users,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *UserHTTP) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get")

	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.Svc.Profile(ctx, id)
	if err != nil {
		l.Warn("get_user_error", "user_id", id, "error", err)
		return serviceHTTPError(err)
	}

	return respond(c, http.StatusOK, "user retrieved", user)
}

// UpdateUser is the admin variant: it additionally honors the role field.
func (h *UserHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update")

	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_user_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Update(ctx, id, service.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		l.Warn("update_user_error", "user_id", id, "error", err)
		return serviceHTTPError(err)
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_updated",
		"user_id": user.ID,
	})

	l.Info("update_user_success", "user_id", user.ID)
	return respond(c, http.StatusOK, "user updated", user)
}

func (h *UserHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete")

	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	if err := h.Svc.Delete(ctx, id); err != nil {
		l.Warn("delete_user_error", "user_id", id, "error", err)
		return serviceHTTPError(err)
	}

	h.publish(c, fmt.Sprint(id), map[string]any{
		"type":    "user_deleted",
		"user_id": id,
	})

	l.Info("delete_user_success", "user_id", id)
	return c.NoContent(http.StatusNoContent)
}
