package handler

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/usecase"
	"farmlink/pkg/response"
	"farmlink/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)
	unreadOnly := c.QueryParam("unread") == "true"

	notifications, total, err := h.notificationUseCase.List(c.Request().Context(), middleware.ActorFrom(c), unreadOnly, pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, notifications, total, pagination.Page, pagination.PageSize)
}

func (h *NotificationHandler) CountUnread(c echo.Context) error {
	n, err := h.notificationUseCase.CountUnread(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"unread": n})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	if err := h.notificationUseCase.MarkRead(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"id": c.Param("id")})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	n, err := h.notificationUseCase.MarkAllRead(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"marked": n})
}
