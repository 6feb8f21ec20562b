package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	adapterrepo "farmlink/internal/adapter/repository"
	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/service"
	"farmlink/internal/infrastructure/ratelimit"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store   *adapterrepo.MemoryStore
	repos   *adapterrepo.Repositories
	gateway *service.SandboxPaymentService
	limiter *ratelimit.RateLimiter
	clock   *testClock
	orders  *OrderUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := adapterrepo.NewMemoryStore()
	repos := adapterrepo.NewMemoryRepositories(store)
	gateway := service.NewSandboxPaymentService()
	limiter := ratelimit.NewRateLimiter()
	limiter.SetPolicy(ratelimit.ActionSubmitPayment, ratelimit.Policy{Every: time.Millisecond, Burst: 100})
	limiter.SetPolicy(ratelimit.ActionSendMessage, ratelimit.Policy{Every: time.Millisecond, Burst: 100})
	clock := newTestClock()

	orders := NewOrderUseCase(repos.Orders, repos.Products, repos.PaymentAttempts, gateway, limiter,
		PaymentSettings{Currency: "usd", Timeout: time.Second})
	orders.now = clock.Now

	return &fixture{
		store:   store,
		repos:   repos,
		gateway: gateway,
		limiter: limiter,
		clock:   clock,
		orders:  orders,
	}
}

func (f *fixture) profile(t *testing.T, id string, role entity.Role) entity.Actor {
	t.Helper()
	p := &entity.Profile{ID: id, Email: id + "@example.com", FullName: "User " + id, Role: role}
	require.NoError(t, f.repos.Profiles.Upsert(context.Background(), p))
	return p.Actor()
}

func (f *fixture) product(t *testing.T, id, farmerID, price string, quantity int) *entity.Product {
	t.Helper()
	p := &entity.Product{
		ID:       id,
		FarmerID: farmerID,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		Unit:     "kg",
		Category: "vegetables",
		Status:   entity.ProductActive,
	}
	require.NoError(t, f.repos.Products.Create(context.Background(), p))
	return p
}

func (f *fixture) pendingEvents(t *testing.T, eventType entity.EventType) []*entity.OutboxEvent {
	t.Helper()
	all, err := f.repos.Outbox.PullPending(context.Background(), 1000)
	require.NoError(t, err)

	var out []*entity.OutboxEvent
	for _, e := range all {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
