package repository

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"farmlink/internal/domain/entity"
)

const (
	productsCollection        = "products"
	ordersCollection          = "orders"
	messagesCollection        = "messages"
	notificationsCollection   = "notifications"
	profilesCollection        = "profiles"
	paymentAttemptsCollection = "payment_attempts"
	outboxCollection          = "outbox"
)

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Firestore has no decimal type, so money is stored as its canonical string.

type productDocument struct {
	ID          string    `firestore:"id"`
	FarmerID    string    `firestore:"farmerId"`
	Name        string    `firestore:"name"`
	NameLower   string    `firestore:"nameLower"`
	Description string    `firestore:"description"`
	Price       string    `firestore:"price"`
	Quantity    int       `firestore:"quantity"`
	Unit        string    `firestore:"unit"`
	Category    string    `firestore:"category"`
	ImageURL    string    `firestore:"imageUrl"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toProductDocument(p *entity.Product) productDocument {
	return productDocument{
		ID:          p.ID,
		FarmerID:    p.FarmerID,
		Name:        p.Name,
		NameLower:   lower(p.Name),
		Description: p.Description,
		Price:       p.Price.String(),
		Quantity:    p.Quantity,
		Unit:        p.Unit,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDocument) toEntity() (*entity.Product, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, err
	}
	return &entity.Product{
		ID:          d.ID,
		FarmerID:    d.FarmerID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Quantity:    d.Quantity,
		Unit:        d.Unit,
		Category:    d.Category,
		ImageURL:    d.ImageURL,
		Status:      entity.ProductStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type orderDocument struct {
	ID               string    `firestore:"id"`
	BuyerID          string    `firestore:"buyerId"`
	ProductID        string    `firestore:"productId"`
	FarmerID         string    `firestore:"farmerId"`
	Quantity         int       `firestore:"quantity"`
	UnitPrice        string    `firestore:"unitPrice"`
	TotalPrice       string    `firestore:"totalPrice"`
	DeliveryAddress  string    `firestore:"deliveryAddress"`
	Notes            string    `firestore:"notes"`
	Status           string    `firestore:"status"`
	PaymentStatus    string    `firestore:"paymentStatus"`
	PaymentReference string    `firestore:"paymentReference"`
	CreatedAt        time.Time `firestore:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func toOrderDocument(o *entity.Order) orderDocument {
	return orderDocument{
		ID:               o.ID,
		BuyerID:          o.BuyerID,
		ProductID:        o.ProductID,
		FarmerID:         o.FarmerID,
		Quantity:         o.Quantity,
		UnitPrice:        o.UnitPrice.String(),
		TotalPrice:       o.TotalPrice.String(),
		DeliveryAddress:  o.DeliveryAddress,
		Notes:            o.Notes,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func (d orderDocument) toEntity() (*entity.Order, error) {
	unit, err := decimal.NewFromString(d.UnitPrice)
	if err != nil {
		return nil, err
	}
	total, err := decimal.NewFromString(d.TotalPrice)
	if err != nil {
		return nil, err
	}
	return &entity.Order{
		ID:               d.ID,
		BuyerID:          d.BuyerID,
		ProductID:        d.ProductID,
		FarmerID:         d.FarmerID,
		Quantity:         d.Quantity,
		UnitPrice:        unit,
		TotalPrice:       total,
		DeliveryAddress:  d.DeliveryAddress,
		Notes:            d.Notes,
		Status:           entity.OrderStatus(d.Status),
		PaymentStatus:    entity.PaymentStatus(d.PaymentStatus),
		PaymentReference: d.PaymentReference,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

type messageDocument struct {
	ID           string    `firestore:"id"`
	SenderID     string    `firestore:"senderId"`
	ReceiverID   string    `firestore:"receiverId"`
	Participants []string  `firestore:"participants"`
	ThreadKey    string    `firestore:"threadKey"`
	Type         string    `firestore:"type"`
	Content      string    `firestore:"content"`
	MediaURL     string    `firestore:"mediaUrl"`
	ProductID    string    `firestore:"productId"`
	Read         bool      `firestore:"read"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

// threadKey is the same for both directions of a conversation.
func threadKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1]
}

func toMessageDocument(m *entity.Message) messageDocument {
	return messageDocument{
		ID:           m.ID,
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		Participants: []string{m.SenderID, m.ReceiverID},
		ThreadKey:    threadKey(m.SenderID, m.ReceiverID),
		Type:         string(m.Type),
		Content:      m.Content,
		MediaURL:     m.MediaURL,
		ProductID:    m.ProductID,
		Read:         m.Read,
		CreatedAt:    m.CreatedAt,
	}
}

func (d messageDocument) toEntity() *entity.Message {
	return &entity.Message{
		ID:         d.ID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Type:       entity.MessageType(d.Type),
		Content:    d.Content,
		MediaURL:   d.MediaURL,
		ProductID:  d.ProductID,
		Read:       d.Read,
		CreatedAt:  d.CreatedAt,
	}
}

type notificationDocument struct {
	ID        string    `firestore:"id"`
	UserID    string    `firestore:"userId"`
	Type      string    `firestore:"type"`
	Title     string    `firestore:"title"`
	Message   string    `firestore:"message"`
	Data      string    `firestore:"data"`
	Read      bool      `firestore:"read"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func toNotificationDocument(n *entity.Notification) (notificationDocument, error) {
	data, err := entity.EncodeNotificationPayload(n.Payload)
	if err != nil {
		return notificationDocument{}, err
	}
	return notificationDocument{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      string(data),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}, nil
}

func (d notificationDocument) toEntity() (*entity.Notification, error) {
	payload, err := entity.DecodeNotificationPayload(entity.NotificationType(d.Type), []byte(d.Data))
	if err != nil {
		return nil, err
	}
	return &entity.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      entity.NotificationType(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		Payload:   payload,
		Read:      d.Read,
		CreatedAt: d.CreatedAt,
	}, nil
}

type paymentAttemptDocument struct {
	ID                 string    `firestore:"id"`
	OrderID            string    `firestore:"orderId"`
	BuyerID            string    `firestore:"buyerId"`
	Amount             string    `firestore:"amount"`
	Currency           string    `firestore:"currency"`
	PaymentMethodToken string    `firestore:"paymentMethodToken"`
	Status             string    `firestore:"status"`
	Retries            int       `firestore:"retries"`
	Reference          string    `firestore:"reference"`
	FailureReason      string    `firestore:"failureReason"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
}

func toPaymentAttemptDocument(a *entity.PaymentAttempt) paymentAttemptDocument {
	return paymentAttemptDocument{
		ID:                 a.ID,
		OrderID:            a.OrderID,
		BuyerID:            a.BuyerID,
		Amount:             a.Amount.String(),
		Currency:           a.Currency,
		PaymentMethodToken: a.PaymentMethodToken,
		Status:             string(a.Status),
		Retries:            a.Retries,
		Reference:          a.Reference,
		FailureReason:      a.FailureReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (d paymentAttemptDocument) toEntity() (*entity.PaymentAttempt, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, err
	}
	return &entity.PaymentAttempt{
		ID:                 d.ID,
		OrderID:            d.OrderID,
		BuyerID:            d.BuyerID,
		Amount:             amount,
		Currency:           d.Currency,
		PaymentMethodToken: d.PaymentMethodToken,
		Status:             entity.PaymentAttemptStatus(d.Status),
		Retries:            d.Retries,
		Reference:          d.Reference,
		FailureReason:      d.FailureReason,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}, nil
}

type outboxDocument struct {
	ID          string     `firestore:"id"`
	Type        string     `firestore:"type"`
	AggregateID string     `firestore:"aggregateId"`
	Recipients  []string   `firestore:"recipients"`
	Payload     string     `firestore:"payload"`
	Status      string     `firestore:"status"`
	Attempts    int        `firestore:"attempts"`
	LastError   string     `firestore:"lastError"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	SentAt      *time.Time `firestore:"sentAt"`
}

func toOutboxDocument(e *entity.OutboxEvent) outboxDocument {
	return outboxDocument{
		ID:          e.ID,
		Type:        string(e.Type),
		AggregateID: e.AggregateID,
		Recipients:  e.Recipients,
		Payload:     string(e.Payload),
		Status:      string(entity.OutboxPending),
		CreatedAt:   e.CreatedAt,
	}
}

func (d outboxDocument) toEntity() *entity.OutboxEvent {
	return &entity.OutboxEvent{
		ID:          d.ID,
		Type:        entity.EventType(d.Type),
		AggregateID: d.AggregateID,
		Recipients:  d.Recipients,
		Payload:     json.RawMessage(d.Payload),
		Status:      entity.OutboxStatus(d.Status),
		Attempts:    d.Attempts,
		LastError:   d.LastError,
		CreatedAt:   d.CreatedAt,
		SentAt:      d.SentAt,
	}
}
