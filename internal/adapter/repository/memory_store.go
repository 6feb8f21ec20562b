package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

// MemoryStore keeps every collection behind one mutex, so a reservation, its
// order and its outbox event land together or not at all. Used in development
// and tests.
type MemoryStore struct {
	mu            sync.Mutex
	products      map[string]*entity.Product
	orders        map[string]*entity.Order
	messages      map[string]*entity.Message
	notifications map[string]*entity.Notification
	profiles      map[string]*entity.Profile
	attempts      map[string]*entity.PaymentAttempt
	outbox        []*entity.OutboxEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:      make(map[string]*entity.Product),
		orders:        make(map[string]*entity.Order),
		messages:      make(map[string]*entity.Message),
		notifications: make(map[string]*entity.Notification),
		profiles:      make(map[string]*entity.Profile),
		attempts:      make(map[string]*entity.PaymentAttempt),
	}
}

func (s *MemoryStore) Products() repository.ProductRepository {
	return &memoryProductRepository{s}
}

func (s *MemoryStore) Orders() repository.OrderRepository {
	return &memoryOrderRepository{s}
}

func (s *MemoryStore) Messages() repository.MessageRepository {
	return &memoryMessageRepository{s}
}

func (s *MemoryStore) Notifications() repository.NotificationRepository {
	return &memoryNotificationRepository{s}
}

func (s *MemoryStore) Profiles() repository.ProfileRepository {
	return &memoryProfileRepository{s}
}

func (s *MemoryStore) PaymentAttempts() repository.PaymentAttemptRepository {
	return &memoryPaymentAttemptRepository{s}
}

func (s *MemoryStore) Outbox() repository.OutboxRepository {
	return &memoryOutboxRepository{s}
}

// enqueue must be called with mu held.
func (s *MemoryStore) enqueue(event *entity.OutboxEvent) {
	if event == nil {
		return
	}
	cp := *event
	cp.Status = entity.OutboxPending
	s.outbox = append(s.outbox, &cp)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ---- products ----

type memoryProductRepository struct{ s *MemoryStore }

func (r *memoryProductRepository) Create(ctx context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.products[product.ID]; exists {
		return errors.Conflict("Product already exists")
	}
	cp := *product
	r.s.products[product.ID] = &cp
	return nil
}

func (r *memoryProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *memoryProductRepository) Update(ctx context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[product.ID]; !ok {
		return errors.NotFound("Product", nil)
	}
	cp := *product
	r.s.products[product.ID] = &cp
	return nil
}

func (r *memoryProductRepository) List(ctx context.Context, filter repository.ProductFilter, limit, offset int) ([]*entity.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []*entity.Product
	for _, p := range r.s.products {
		if filter.FarmerID != "" && p.FarmerID != filter.FarmerID {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return page(out, limit, offset), int64(len(out)), nil
}

// ---- orders ----

type memoryOrderRepository struct{ s *MemoryStore }

func (r *memoryOrderRepository) CreateWithReservation(ctx context.Context, order *entity.Order, event *entity.OutboxEvent) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[order.ProductID]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	if _, exists := r.s.orders[order.ID]; exists {
		return nil, errors.Conflict("Order already exists")
	}

	reserved := *product
	if !reserved.Reserve(order.Quantity) {
		return nil, errors.InsufficientStock(order.Quantity, product.Quantity)
	}
	reserved.UpdatedAt = order.CreatedAt

	r.s.products[product.ID] = &reserved
	cp := *order
	r.s.orders[order.ID] = &cp
	r.s.enqueue(event)

	out := cp
	return &out, nil
}

func (r *memoryOrderRepository) Transition(ctx context.Context, id string, from, to entity.OrderStatus, restock bool, at time.Time, event *entity.OutboxEvent) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[id]
	if !ok {
		return nil, errors.NotFound("Order", nil)
	}
	if current.Status != from {
		return nil, errors.Conflict("Order status changed to " + string(current.Status) + " concurrently")
	}

	updated := *current
	updated.Status = to
	updated.UpdatedAt = at

	if restock {
		if product, ok := r.s.products[updated.ProductID]; ok {
			released := *product
			released.Release(updated.Quantity)
			released.UpdatedAt = at
			r.s.products[product.ID] = &released
		}
	}

	r.s.orders[id] = &updated
	r.s.enqueue(event)

	out := updated
	return &out, nil
}

func (r *memoryOrderRepository) CompletePayment(ctx context.Context, id, reference string, at time.Time, event *entity.OutboxEvent) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[id]
	if !ok {
		return nil, errors.NotFound("Order", nil)
	}
	if current.PaymentStatus != entity.PaymentPending {
		return nil, errors.Conflict("Payment is already " + string(current.PaymentStatus))
	}

	updated := *current
	updated.ApplyPayment(reference, at)
	r.s.orders[id] = &updated
	r.s.enqueue(event)

	out := updated
	return &out, nil
}

func (r *memoryOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, errors.NotFound("Order", nil)
	}
	cp := *o
	return &cp, nil
}

func (r *memoryOrderRepository) ListByBuyer(ctx context.Context, buyerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	return r.list(func(o *entity.Order) bool { return o.BuyerID == buyerID }, status, limit, offset)
}

func (r *memoryOrderRepository) ListByFarmer(ctx context.Context, farmerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	return r.list(func(o *entity.Order) bool { return o.FarmerID == farmerID }, status, limit, offset)
}

func (r *memoryOrderRepository) list(match func(*entity.Order) bool, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Order
	for _, o := range r.s.orders {
		if !match(o) || (status != "" && o.Status != status) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return page(out, limit, offset), int64(len(out)), nil
}

// ---- messages ----

type memoryMessageRepository struct{ s *MemoryStore }

func (r *memoryMessageRepository) Create(ctx context.Context, message *entity.Message, event *entity.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.messages[message.ID]; exists {
		return errors.Conflict("Message already exists")
	}
	cp := *message
	r.s.messages[message.ID] = &cp
	r.s.enqueue(event)
	return nil
}

func (r *memoryMessageRepository) ListForParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Message, error) {
	out := r.collect(func(m *entity.Message) bool {
		return m.SenderID == userID || m.ReceiverID == userID
	})
	return page(out, limit, offset), nil
}

func (r *memoryMessageRepository) ListThread(ctx context.Context, a, b string, limit, offset int) ([]*entity.Message, int64, error) {
	out := r.collect(func(m *entity.Message) bool {
		return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
	})
	return page(out, limit, offset), int64(len(out)), nil
}

func (r *memoryMessageRepository) MarkThreadRead(ctx context.Context, viewerID, otherID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for id, m := range r.s.messages {
		if m.SenderID == otherID && m.IsUnreadFor(viewerID) {
			cp := *m
			cp.Read = true
			r.s.messages[id] = &cp
			count++
		}
	}
	return count, nil
}

func (r *memoryMessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, m := range r.s.messages {
		if m.IsUnreadFor(userID) {
			count++
		}
	}
	return count, nil
}

func (r *memoryMessageRepository) collect(match func(*entity.Message) bool) []*entity.Message {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Message
	for _, m := range r.s.messages {
		if match(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Newer(out[j]) })
	return out
}

// ---- notifications ----

type memoryNotificationRepository struct{ s *MemoryStore }

func (r *memoryNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.notifications[notification.ID]; exists {
		return nil
	}
	cp := *notification
	r.s.notifications[notification.ID] = &cp
	return nil
}

func (r *memoryNotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Notification
	for _, n := range r.s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return page(out, limit, offset), int64(len(out)), nil
}

func (r *memoryNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID {
		return errors.NotFound("Notification", nil)
	}
	cp := *n
	cp.Read = true
	r.s.notifications[id] = &cp
	return nil
}

func (r *memoryNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for id, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			cp := *n
			cp.Read = true
			r.s.notifications[id] = &cp
			count++
		}
	}
	return count, nil
}

func (r *memoryNotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// ---- profiles ----

type memoryProfileRepository struct{ s *MemoryStore }

func (r *memoryProfileRepository) Upsert(ctx context.Context, profile *entity.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *profile
	r.s.profiles[profile.ID] = &cp
	return nil
}

func (r *memoryProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return nil, errors.NotFound("Profile", nil)
	}
	cp := *p
	return &cp, nil
}

// ---- payment attempts ----

type memoryPaymentAttemptRepository struct{ s *MemoryStore }

func (r *memoryPaymentAttemptRepository) Save(ctx context.Context, attempt *entity.PaymentAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *attempt
	r.s.attempts[attempt.ID] = &cp
	return nil
}

func (r *memoryPaymentAttemptRepository) GetByID(ctx context.Context, id string) (*entity.PaymentAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attempts[id]
	if !ok {
		return nil, errors.NotFound("Payment attempt", nil)
	}
	cp := *a
	return &cp, nil
}

func (r *memoryPaymentAttemptRepository) ListUnsettled(ctx context.Context, before time.Time, limit int) ([]*entity.PaymentAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.PaymentAttempt
	for _, a := range r.s.attempts {
		if a.Unsettled() && a.UpdatedAt.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return page(out, limit, 0), nil
}

// ---- outbox ----

type memoryOutboxRepository struct{ s *MemoryStore }

func (r *memoryOutboxRepository) PullPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.OutboxEvent
	for _, e := range r.s.outbox {
		if e.Status == entity.OutboxPending {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkSent drops the event. Nothing reads sent events back from memory.
func (r *memoryOutboxRepository) MarkSent(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, e := range r.s.outbox {
		if e.ID == id {
			r.s.outbox = append(r.s.outbox[:i], r.s.outbox[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("Outbox event", nil)
}

func (r *memoryOutboxRepository) MarkFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID == id {
			e.Attempts++
			e.LastError = reason
			if e.Attempts >= maxAttempts {
				e.Status = entity.OutboxFailed
			}
			return nil
		}
	}
	return errors.NotFound("Outbox event", nil)
}
