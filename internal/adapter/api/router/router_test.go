package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlink/internal/adapter/api"
	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/adapter/repository"
	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/service"
	"farmlink/internal/infrastructure/events"
	"farmlink/internal/infrastructure/firebase"
	"farmlink/internal/infrastructure/ratelimit"
	"farmlink/internal/infrastructure/websocket"
	"farmlink/internal/usecase"
)

type testServer struct {
	e     *echo.Echo
	relay *events.Relay
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type page struct {
	Items json.RawMessage `json:"items"`
	Total int64           `json:"total"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repos := repository.NewMemoryRepositories(repository.NewMemoryStore())
	limiter := ratelimit.NewRateLimiter()

	profileUseCase := usecase.NewProfileUseCase(repos.Profiles)
	productUseCase := usecase.NewProductUseCase(repos.Products)
	orderUseCase := usecase.NewOrderUseCase(repos.Orders, repos.Products, repos.PaymentAttempts,
		service.NewSandboxPaymentService(), limiter, usecase.PaymentSettings{Currency: "usd", Timeout: time.Second})
	conversationUseCase := usecase.NewConversationUseCase(repos.Messages, repos.Profiles, repos.Products, nil, limiter)

	wsManager := websocket.NewManager(conversationUseCase)
	notificationUseCase := usecase.NewNotificationUseCase(repos.Notifications, repos.Products, repos.Profiles, wsManager)

	bus := events.NewBus()
	notificationUseCase.Register(bus)

	handler.Setup("memory", profileUseCase, productUseCase, orderUseCase, conversationUseCase, notificationUseCase)

	e := echo.New()
	e.Validator = api.NewValidator()
	authMiddleware := middleware.NewAuthMiddleware(firebase.NewDevTokenVerifier(), repos.Profiles)
	Setup(e, authMiddleware, limiter, handler.NewWebSocketHandler(wsManager, nil))

	return &testServer{
		e:     e,
		relay: events.NewRelay(repos.Outbox, bus, time.Second),
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (s *testServer) onboard(t *testing.T, uid string, role entity.Role) {
	t.Helper()
	code, env := s.do(t, http.MethodPut, "/v1/me", uid+":"+uid+"@example.com", map[string]string{
		"full_name": "User " + uid,
		"role":      string(role),
	})
	require.Equal(t, http.StatusOK, code, env.Error)
}

func (s *testServer) listProduct(t *testing.T, farmer, price string, quantity int) *entity.Product {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/v1/products", farmer, map[string]interface{}{
		"name":     "Tomatoes",
		"price":    price,
		"quantity": quantity,
		"category": "vegetables",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	var product entity.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))
	return &product
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"storage":"memory"`)
}

func TestRoutesRequireSessionAndProfile(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/v1/orders", "newcomer", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/v1/me", "newcomer", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	s.onboard(t, "newcomer", entity.RoleBuyer)
	code, _ = s.do(t, http.MethodGet, "/v1/orders", "newcomer", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "farmer-1", entity.RoleFarmer)
	s.onboard(t, "buyer-1", entity.RoleBuyer)
	product := s.listProduct(t, "farmer-1", "2.50", 10)

	code, env := s.do(t, http.MethodPost, "/v1/orders", "buyer-1", map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         3,
		"delivery_address": "12 Orchard Lane",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var order entity.Order
	decode(t, env.Data, &order)
	assert.True(t, decimal.RequireFromString("7.50").Equal(order.TotalPrice))
	assert.Equal(t, entity.OrderPending, order.Status)

	code, env = s.do(t, http.MethodGet, "/v1/products/"+product.ID, "buyer-1", nil)
	require.Equal(t, http.StatusOK, code)
	var reloaded entity.Product
	decode(t, env.Data, &reloaded)
	assert.Equal(t, 7, reloaded.Quantity)

	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/status", "farmer-1", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/payment", "buyer-1", map[string]string{"payment_method_token": "tok_visa"})
	require.Equal(t, http.StatusOK, code, env.Error)
	decode(t, env.Data, &order)
	assert.Equal(t, entity.OrderConfirmed, order.Status)
	assert.Equal(t, entity.PaymentCompleted, order.PaymentStatus)

	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/status", "buyer-1", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, _ = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/status", "farmer-1", map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/status", "buyer-1", map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &order)
	assert.Equal(t, entity.OrderDelivered, order.Status)

	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/status", "farmer-1", map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_TERMINAL", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/status", "buyer-1", map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_TERMINAL", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/v1/orders?status=delivered", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	var orders page
	decode(t, env.Data, &orders)
	assert.Equal(t, int64(1), orders.Total)
}

func TestPaymentDeclineOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "farmer-1", entity.RoleFarmer)
	s.onboard(t, "buyer-1", entity.RoleBuyer)
	product := s.listProduct(t, "farmer-1", "4.00", 5)

	code, env := s.do(t, http.MethodPost, "/v1/orders", "buyer-1", map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         1,
		"delivery_address": "12 Orchard Lane",
	})
	require.Equal(t, http.StatusCreated, code)
	var order entity.Order
	decode(t, env.Data, &order)

	code, env = s.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/payment", "buyer-1", map[string]string{"payment_method_token": "tok_decline_insufficient_funds"})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "PAYMENT_FAILED", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/v1/orders/"+order.ID, "buyer-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &order)
	assert.Equal(t, entity.OrderPending, order.Status)
	assert.Equal(t, entity.PaymentPending, order.PaymentStatus)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "farmer-1", entity.RoleFarmer)
	s.onboard(t, "buyer-1", entity.RoleBuyer)
	product := s.listProduct(t, "farmer-1", "1.00", 5)

	tests := []struct {
		name  string
		token string
		path  string
		body  interface{}
	}{
		{"price with three decimals", "farmer-1", "/v1/products", map[string]interface{}{"name": "Kale", "price": "1.005", "quantity": 1, "category": "greens"}},
		{"negative price", "farmer-1", "/v1/products", map[string]interface{}{"name": "Kale", "price": "-1", "quantity": 1, "category": "greens"}},
		{"missing address", "buyer-1", "/v1/orders", map[string]interface{}{"product_id": product.ID, "quantity": 1}},
		{"missing status", "farmer-1", "/v1/orders/any/status", map[string]string{}},
		{"unknown message type", "buyer-1", "/v1/messages", map[string]string{"receiver_id": "farmer-1", "type": "video"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}
}

func TestOrderInputRejectedByRules(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "farmer-1", entity.RoleFarmer)
	s.onboard(t, "buyer-1", entity.RoleBuyer)
	product := s.listProduct(t, "farmer-1", "1.00", 5)

	tests := []struct {
		name  string
		token string
		path  string
		body  interface{}
	}{
		{"zero quantity order", "buyer-1", "/v1/orders", map[string]interface{}{"product_id": product.ID, "quantity": 0, "delivery_address": "x"}},
		{"negative quantity order", "buyer-1", "/v1/orders", map[string]interface{}{"product_id": product.ID, "quantity": -2, "delivery_address": "x"}},
		{"unknown status", "farmer-1", "/v1/orders/any/status", map[string]string{"status": "lost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_INPUT", env.Error.Code)
		})
	}
}

func TestMessagingOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "farmer-1", entity.RoleFarmer)
	s.onboard(t, "buyer-1", entity.RoleBuyer)
	product := s.listProduct(t, "farmer-1", "3.00", 5)

	code, env := s.do(t, http.MethodPost, "/v1/messages", "buyer-1", map[string]string{
		"receiver_id": "farmer-1",
		"content":     "Are these organic?",
		"product_id":  product.ID,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodGet, "/v1/conversations", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	var conversations []entity.Conversation
	decode(t, env.Data, &conversations)
	require.Len(t, conversations, 1)
	assert.Equal(t, "buyer-1", conversations[0].OtherPartyID)
	assert.Equal(t, 1, conversations[0].UnreadCount)
	require.NotNil(t, conversations[0].ProductContext)
	assert.Equal(t, "Tomatoes", conversations[0].ProductContext.Name)

	var counts map[string]int
	code, env = s.do(t, http.MethodGet, "/v1/messages/unread-count", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &counts)
	assert.Equal(t, 1, counts["unread"])

	code, env = s.do(t, http.MethodPost, "/v1/conversations/buyer-1/read", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &counts)
	assert.Equal(t, 1, counts["marked"])

	code, env = s.do(t, http.MethodGet, "/v1/messages/unread-count", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &counts)
	assert.Equal(t, 0, counts["unread"])

	code, env = s.do(t, http.MethodGet, "/v1/conversations/farmer-1/messages", "buyer-1", nil)
	require.Equal(t, http.StatusOK, code)
	var thread page
	decode(t, env.Data, &thread)
	assert.Equal(t, int64(1), thread.Total)
}

func TestNotificationsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.onboard(t, "farmer-1", entity.RoleFarmer)
	s.onboard(t, "buyer-1", entity.RoleBuyer)
	product := s.listProduct(t, "farmer-1", "2.00", 5)

	code, _ := s.do(t, http.MethodPost, "/v1/orders", "buyer-1", map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         2,
		"delivery_address": "12 Orchard Lane",
	})
	require.Equal(t, http.StatusCreated, code)

	_, err := s.relay.Drain(context.Background())
	require.NoError(t, err)

	code, env := s.do(t, http.MethodGet, "/v1/notifications?unread=true", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	var notes page
	decode(t, env.Data, &notes)
	assert.Equal(t, int64(1), notes.Total)

	var items []entity.Notification
	decode(t, notes.Items, &items)
	require.Len(t, items, 1)

	code, _ = s.do(t, http.MethodPost, "/v1/notifications/"+items[0].ID+"/read", "buyer-1", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/v1/notifications/"+items[0].ID+"/read", "farmer-1", nil)
	assert.Equal(t, http.StatusOK, code)

	var counts map[string]int
	code, env = s.do(t, http.MethodGet, "/v1/notifications/unread-count", "farmer-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &counts)
	assert.Equal(t, 0, counts["unread"])

	code, env = s.do(t, http.MethodPost, "/v1/notifications/read-all", "buyer-1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &counts)
	assert.Equal(t, 1, counts["marked"])
}
