package handler

import (
	"encoding/base64"
	"strings"

	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/domain/entity"
	"farmlink/internal/usecase"
	"farmlink/pkg/errors"
	"farmlink/pkg/response"
	"farmlink/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
	}
}

// Media is base64, optionally as a data URL ("data:audio/webm;base64,...").
type sendMessageRequest struct {
	ReceiverID       string `json:"receiver_id" validate:"required"`
	Type             string `json:"type" validate:"omitempty,oneof=text voice image"`
	Content          string `json:"content" validate:"max=4000"`
	ProductID        string `json:"product_id"`
	Media            string `json:"media"`
	MediaContentType string `json:"media_content_type"`
}

func (h *ConversationHandler) GetConversations(c echo.Context) error {
	conversations, err := h.conversationUseCase.GetConversations(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversations)
}

func (h *ConversationHandler) GetThread(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	messages, total, err := h.conversationUseCase.GetThread(c.Request().Context(), middleware.ActorFrom(c),
		c.Param("userId"), pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, messages, total, pagination.Page, pagination.PageSize)
}

func (h *ConversationHandler) MarkThreadRead(c echo.Context) error {
	n, err := h.conversationUseCase.MarkThreadRead(c.Request().Context(), middleware.ActorFrom(c), c.Param("userId"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"marked": n})
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.SendMessageInput{
		ReceiverID:       req.ReceiverID,
		Type:             entity.MessageType(req.Type),
		Content:          req.Content,
		ProductID:        req.ProductID,
		MediaContentType: req.MediaContentType,
	}
	if req.Media != "" {
		contentType, data, err := decodeMedia(req.Media)
		if err != nil {
			return response.Error(c, errors.InvalidInput("Media must be base64 encoded"))
		}
		input.Media = data
		if input.MediaContentType == "" {
			input.MediaContentType = contentType
		}
	}

	message, err := h.conversationUseCase.SendMessage(c.Request().Context(), middleware.ActorFrom(c), input)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

func (h *ConversationHandler) CountUnread(c echo.Context) error {
	n, err := h.conversationUseCase.CountUnreadMessages(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"unread": n})
}

// decodeMedia accepts raw base64 or a data URL and returns the declared content type, if any.
func decodeMedia(encoded string) (string, []byte, error) {
	contentType := ""
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return "", nil, base64.CorruptInputError(0)
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, err
	}
	return contentType, data, nil
}
