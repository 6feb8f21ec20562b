package handler

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/domain/entity"
	"farmlink/internal/usecase"
	"farmlink/pkg/response"
)

type ProfileHandler struct {
	profileUseCase *usecase.ProfileUseCase
}

func NewProfileHandler(profileUseCase *usecase.ProfileUseCase) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: profileUseCase,
	}
}

type upsertProfileRequest struct {
	FullName  string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=farmer buyer"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Address   string `json:"address" validate:"omitempty,max=300"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

func (h *ProfileHandler) GetMe(c echo.Context) error {
	profile, err := h.profileUseCase.GetMe(c.Request().Context(), middleware.UIDFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, profile)
}

func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	var req upsertProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	profile, err := h.profileUseCase.UpsertMe(c.Request().Context(), middleware.UIDFrom(c), middleware.EmailFrom(c), usecase.UpsertProfileInput{
		FullName:  req.FullName,
		Role:      entity.Role(req.Role),
		Phone:     req.Phone,
		Address:   req.Address,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, profile)
}

func (h *ProfileHandler) GetProfile(c echo.Context) error {
	profile, err := h.profileUseCase.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, profile)
}
