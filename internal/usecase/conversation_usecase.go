package usecase

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/internal/domain/service"
	"farmlink/internal/infrastructure/ratelimit"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
)

const (
	conversationPageSize = 500
	maxMessageLength        = 4000
	maxMediaBytes           = 10 << 20
)

type ConversationUseCase struct {
	messageRepo repository.MessageRepository
	profileRepo repository.ProfileRepository
	productRepo repository.ProductRepository
	media       service.MediaStore
	rateLimiter *ratelimit.RateLimiter
	now         func() time.Time
}

func NewConversationUseCase(
	messageRepo repository.MessageRepository,
	profileRepo repository.ProfileRepository,
	productRepo repository.ProductRepository,
	media service.MediaStore,
	rateLimiter *ratelimit.RateLimiter,
) *ConversationUseCase {
	return &ConversationUseCase{
		messageRepo: messageRepo,
		profileRepo: profileRepo,
		productRepo: productRepo,
		media:       media,
		rateLimiter: rateLimiter,
		now:         time.Now,
	}
}

// BuildConversations groups the viewer's messages by counterparty. Messages
// are visited newest first (created_at, then id); the first one seen per
// counterparty is its last message and supplies the product context, the rest
// only add to the unread count. The result is ordered the same way.
func BuildConversations(viewerID string, messages []*entity.Message) []*entity.Conversation {
	ordered := make([]*entity.Message, 0, len(messages))
	for _, m := range messages {
		if m.SenderID == viewerID || m.ReceiverID == viewerID {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Newer(ordered[j]) })

	byParty := make(map[string]*entity.Conversation)
	conversations := []*entity.Conversation{}

	for _, m := range ordered {
		otherID := m.OtherParty(viewerID)

		conv, seen := byParty[otherID]
		if !seen {
			conv = &entity.Conversation{
				OtherPartyID: otherID,
				LastMessage:  m,
			}
			if m.ProductID != "" {
				conv.ProductContext = &entity.ProductContext{ID: m.ProductID}
			}
			byParty[otherID] = conv
			conversations = append(conversations, conv)
		}

		if m.IsUnreadFor(viewerID) {
			conv.UnreadCount++
		}
	}

	return conversations
}

// GetConversations returns the actor's conversations with profile and product details attached.
func (uc *ConversationUseCase) GetConversations(ctx context.Context, actor entity.Actor) ([]*entity.Conversation, error) {
	messages, err := uc.participantMessages(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	conversations := BuildConversations(actor.UserID, messages)

	products := make(map[string]*entity.Product)
	for _, conv := range conversations {
		if profile, err := uc.profileRepo.GetByID(ctx, conv.OtherPartyID); err == nil {
			conv.OtherParty = profile.Summary()
		} else if !errors.Is(err, errors.CodeNotFound) {
			return nil, err
		}

		if conv.ProductContext == nil {
			continue
		}
		product, cached := products[conv.ProductContext.ID]
		if !cached {
			product, err = uc.productRepo.GetByID(ctx, conv.ProductContext.ID)
			if err != nil && !errors.Is(err, errors.CodeNotFound) {
				return nil, err
			}
			products[conv.ProductContext.ID] = product
		}
		if product != nil {
			conv.ProductContext.Name = product.Name
			conv.ProductContext.ImageURL = product.ImageURL
		}
	}

	return conversations, nil
}

// participantMessages reads every page of the user's messages. A message
// arriving between pages shifts the offsets, so repeats are dropped by ID.
func (uc *ConversationUseCase) participantMessages(ctx context.Context, userID string) ([]*entity.Message, error) {
	var all []*entity.Message
	seen := make(map[string]struct{})

	for offset := 0; ; offset += conversationPageSize {
		batch, err := uc.messageRepo.ListForParticipant(ctx, userID, conversationPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, m := range batch {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			all = append(all, m)
		}
		if len(batch) < conversationPageSize {
			return all, nil
		}
	}
}

func (uc *ConversationUseCase) GetThread(ctx context.Context, actor entity.Actor, otherID string, page, limit int) ([]*entity.Message, int64, error) {
	if otherID == "" || otherID == actor.UserID {
		return nil, 0, errors.InvalidInput("A conversation needs another participant")
	}
	return uc.messageRepo.ListThread(ctx, actor.UserID, otherID, limit, (page-1)*limit)
}

type SendMessageInput struct {
	ReceiverID       string
	Type             entity.MessageType
	Content          string
	ProductID        string
	Media            []byte
	MediaContentType string
}

func (uc *ConversationUseCase) SendMessage(ctx context.Context, actor entity.Actor, input SendMessageInput) (*entity.Message, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(actor.UserID, ratelimit.ActionSendMessage); !allowed {
			logger.Warn("SendMessage rate limited: user=%s wait=%v", actor.UserID, wait)
			return nil, errors.TooManyRequests("Too many messages, please wait " + wait.Round(time.Second).String())
		}
	}

	if input.ReceiverID == "" || input.ReceiverID == actor.UserID {
		return nil, errors.InvalidInput("Choose someone else to message")
	}
	if input.Type == "" {
		input.Type = entity.MessageText
	}
	if !input.Type.Valid() {
		return nil, errors.InvalidInput("Unknown message type " + string(input.Type))
	}

	content := strings.TrimSpace(input.Content)
	if input.Type == entity.MessageText && content == "" {
		return nil, errors.InvalidInput("Message cannot be empty")
	}
	if len(content) > maxMessageLength {
		return nil, errors.InvalidInput("Message is too long")
	}

	if _, err := uc.profileRepo.GetByID(ctx, input.ReceiverID); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.NotFound("Receiver", err)
		}
		return nil, err
	}
	if input.ProductID != "" {
		if _, err := uc.productRepo.GetByID(ctx, input.ProductID); err != nil {
			return nil, err
		}
	}

	message := &entity.Message{
		ID:         uuid.New().String(),
		SenderID:   actor.UserID,
		ReceiverID: input.ReceiverID,
		Type:       input.Type,
		Content:    content,
		ProductID:  input.ProductID,
		CreatedAt:  uc.now(),
	}

	if input.Type != entity.MessageText {
		url, err := uc.uploadMedia(ctx, input)
		if err != nil {
			return nil, err
		}
		message.MediaURL = url
	}

	event, err := entity.NewOutboxEvent(entity.EventMessageSent, message.ID, []string{message.SenderID, message.ReceiverID},
		entity.MessageEventPayload{Message: message}, message.CreatedAt)
	if err != nil {
		return nil, errors.Internal("Failed to build message event", err)
	}

	if err := uc.messageRepo.Create(ctx, message, event); err != nil {
		if message.MediaURL != "" {
			if delErr := uc.media.Delete(ctx, message.MediaURL); delErr != nil {
				logger.Warn("Failed to remove orphaned media %s: %v", message.MediaURL, delErr)
			}
		}
		return nil, err
	}

	logger.Info("Message sent: id=%s from=%s to=%s type=%s", message.ID, message.SenderID, message.ReceiverID, message.Type)
	return message, nil
}

func (uc *ConversationUseCase) uploadMedia(ctx context.Context, input SendMessageInput) (string, error) {
	if len(input.Media) == 0 {
		return "", errors.InvalidInput("A " + string(input.Type) + " message needs a payload")
	}
	if len(input.Media) > maxMediaBytes {
		return "", errors.InvalidInput("Attachment is larger than 10MB")
	}

	wantPrefix := "image/"
	if input.Type == entity.MessageVoice {
		wantPrefix = "audio/"
	}
	if !strings.HasPrefix(input.MediaContentType, wantPrefix) {
		return "", errors.InvalidInput("A " + string(input.Type) + " message needs " + wantPrefix + "* content")
	}

	if uc.media == nil {
		return "", errors.BadRequest("Media messages are not enabled on this server", nil)
	}

	url, err := uc.media.Upload(ctx, bytes.NewReader(input.Media), input.MediaContentType, "messages/"+string(input.Type))
	if err != nil {
		return "", errors.GatewayUnavailable("Media storage", err)
	}
	return url, nil
}

// MarkThreadRead marks everything otherID sent the actor as read and returns
// how many messages changed. Repeating it changes nothing.
func (uc *ConversationUseCase) MarkThreadRead(ctx context.Context, actor entity.Actor, otherID string) (int, error) {
	if otherID == "" {
		return 0, errors.InvalidInput("Other participant is required")
	}
	n, err := uc.messageRepo.MarkThreadRead(ctx, actor.UserID, otherID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Debug("Marked %d messages from %s read for %s", n, otherID, actor.UserID)
	}
	return n, nil
}

func (uc *ConversationUseCase) CountUnreadMessages(ctx context.Context, actor entity.Actor) (int, error) {
	return uc.messageRepo.CountUnread(ctx, actor.UserID)
}
