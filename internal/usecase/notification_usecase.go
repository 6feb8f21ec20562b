package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/internal/infrastructure/events"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	productRepo      repository.ProductRepository
	profileRepo      repository.ProfileRepository
	realtime         RealtimeNotifier
}

func NewNotificationUseCase(
	notificationRepo repository.NotificationRepository,
	productRepo repository.ProductRepository,
	profileRepo repository.ProfileRepository,
	realtime RealtimeNotifier,
) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		productRepo:      productRepo,
		profileRepo:      profileRepo,
		realtime:         realtime,
	}
}

// Register subscribes the notification writers to the event bus.
func (uc *NotificationUseCase) Register(bus *events.Bus) {
	bus.Subscribe(entity.EventOrderCreated, "notifications.order_created", uc.onOrderCreated)
	bus.Subscribe(entity.EventOrderStatusChanged, "notifications.order_status", uc.onOrderStatusChanged)
	bus.Subscribe(entity.EventOrderPaymentCompleted, "notifications.payment_completed", uc.onPaymentCompleted)
	bus.Subscribe(entity.EventMessageSent, "notifications.message_sent", uc.onMessageSent)
}

func (uc *NotificationUseCase) onOrderCreated(ctx context.Context, event *entity.OutboxEvent) error {
	payload, err := event.OrderPayload()
	if err != nil {
		return err
	}
	order := payload.Order
	productName := uc.productName(ctx, order.ProductID)

	farmerNote := entity.NewNotification(order.FarmerID, "New order received",
		fmt.Sprintf("%d x %s ordered, total %s", order.Quantity, productName, order.TotalPrice.StringFixed(2)),
		entity.NewOrderPayload{
			OrderID:    order.ID,
			ProductID:  order.ProductID,
			BuyerID:    order.BuyerID,
			Quantity:   order.Quantity,
			TotalPrice: order.TotalPrice,
		})
	buyerNote := entity.NewNotification(order.BuyerID, "Order placed",
		fmt.Sprintf("Your order for %s was placed, total %s", productName, order.TotalPrice.StringFixed(2)),
		entity.OrderPlacedPayload{
			OrderID:    order.ID,
			ProductID:  order.ProductID,
			TotalPrice: order.TotalPrice,
		})

	return uc.deliver(ctx, event, farmerNote, buyerNote)
}

func (uc *NotificationUseCase) onOrderStatusChanged(ctx context.Context, event *entity.OutboxEvent) error {
	payload, err := event.OrderPayload()
	if err != nil {
		return err
	}
	order := payload.Order

	note := entity.NewNotification(order.Counterparty(payload.ActorID), "Order "+string(order.Status),
		fmt.Sprintf("Order for %s moved from %s to %s", uc.productName(ctx, order.ProductID), payload.PreviousStatus, order.Status),
		entity.OrderStatusPayload{
			OrderID: order.ID,
			From:    payload.PreviousStatus,
			To:      order.Status,
		})

	return uc.deliver(ctx, event, note)
}

func (uc *NotificationUseCase) onPaymentCompleted(ctx context.Context, event *entity.OutboxEvent) error {
	payload, err := event.OrderPayload()
	if err != nil {
		return err
	}
	order := payload.Order

	note := entity.NewNotification(order.FarmerID, "Payment received",
		fmt.Sprintf("Payment of %s received for %s", order.TotalPrice.StringFixed(2), uc.productName(ctx, order.ProductID)),
		entity.PaymentCompletedPayload{
			OrderID:   order.ID,
			Reference: order.PaymentReference,
			Amount:    order.TotalPrice,
		})

	return uc.deliver(ctx, event, note)
}

func (uc *NotificationUseCase) onMessageSent(ctx context.Context, event *entity.OutboxEvent) error {
	payload, err := event.MessagePayload()
	if err != nil {
		return err
	}
	msg := payload.Message

	sender := "Someone"
	if profile, err := uc.profileRepo.GetByID(ctx, msg.SenderID); err == nil && profile.FullName != "" {
		sender = profile.FullName
	}

	body := msg.Content
	switch msg.Type {
	case entity.MessageVoice:
		body = "Sent a voice message"
	case entity.MessageImage:
		body = "Sent an image"
	}
	if runes := []rune(body); len(runes) > 120 {
		body = string(runes[:117]) + "..."
	}

	note := entity.NewNotification(msg.ReceiverID, "New message from "+sender, body,
		entity.NewMessagePayload{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			MessageType: msg.Type,
			ProductID:   msg.ProductID,
		})

	return uc.deliver(ctx, event, note)
}

// deliver stores notifications under ids derived from the event, so a
// redelivered event writes nothing new.
func (uc *NotificationUseCase) deliver(ctx context.Context, event *entity.OutboxEvent, notes ...*entity.Notification) error {
	for _, note := range notes {
		note.ID = notificationID(event.ID, note.Type, note.UserID)
		note.CreatedAt = event.CreatedAt

		if err := uc.notificationRepo.Create(ctx, note); err != nil {
			return err
		}
		if uc.realtime != nil {
			uc.realtime.SendToUser(note.UserID, "notification", note)
		}
	}
	return nil
}

func notificationID(eventID string, t entity.NotificationType, userID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventID+"/"+string(t)+"/"+userID)).String()
}

func (uc *NotificationUseCase) productName(ctx context.Context, productID string) string {
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		logger.Debug("Product lookup for notification failed: product=%s: %v", productID, err)
		return "your product"
	}
	return product.Name
}

func (uc *NotificationUseCase) List(ctx context.Context, actor entity.Actor, unreadOnly bool, page, limit int) ([]*entity.Notification, int64, error) {
	return uc.notificationRepo.ListByUser(ctx, actor.UserID, unreadOnly, limit, (page-1)*limit)
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, actor entity.Actor, id string) error {
	if id == "" {
		return errors.InvalidInput("Notification id is required")
	}
	return uc.notificationRepo.MarkRead(ctx, actor.UserID, id)
}

func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, actor entity.Actor) (int, error) {
	n, err := uc.notificationRepo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, err
	}
	logger.Debug("Marked %d notifications read for %s", n, actor.UserID)
	return n, nil
}

func (uc *NotificationUseCase) CountUnread(ctx context.Context, actor entity.Actor) (int, error) {
	return uc.notificationRepo.CountUnread(ctx, actor.UserID)
}
