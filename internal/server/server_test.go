package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salesflow/config"
	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	"salesflow/internal/handler"
	"salesflow/internal/middleware"
	"salesflow/internal/outbox"
	"salesflow/internal/outbox/handlers"
	"salesflow/internal/repository/memory"
	"salesflow/internal/services"
	"salesflow/internal/workflow"
	"salesflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-admin-secret")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testApp struct {
	engine *gin.Engine
	store  *memory.Store
	token  string
}

func newTestApp(t *testing.T, checks map[string]HealthCheck) *testApp {
	t.Helper()
	l := logger.NewNop()
	store := memory.New()

	publisher := services.NewEventPublisher(store)
	recorder := services.NewWorkflowRecorder()
	coordinator := services.NewPhaseCoordinator(publisher, recorder, l)
	sales := services.NewSaleService(store, publisher, recorder, coordinator, l)
	fulfillments := services.NewFulfillmentService(store, recorder, coordinator, l)

	proc, err := outbox.NewProcessor(store.Outbox(), handlers.DefaultChain(store, sales, nil, l), outbox.Options{Logger: l})
	require.NoError(t, err)

	srv := New(&config.Config{AppMode: TestMode, AppPort: "0"}, l)
	srv.SetupRoutes(&Handlers{
		Outbox:   handler.NewOutboxHandler(proc, services.NewOutboxStatusService(store.Outbox())),
		Event:    handler.NewEventHandler(publisher),
		Workflow: handler.NewWorkflowHandler(sales, fulfillments),
		Payment:  handler.NewPaymentHandler(sales),
	}, testSecret, checks)

	token, err := middleware.IssueAdminToken(testSecret, uuid.NewString(), "ADMIN", time.Hour)
	require.NoError(t, err)
	return &testApp{engine: srv.Engine(), store: store, token: token}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string) (int, envelope) {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	return rec.Code, env
}

func TestPingAndHealth(t *testing.T) {
	app := newTestApp(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	code, env := app.do(t, http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = app.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)

	down := newTestApp(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	code, env = down.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "UNHEALTHY", env.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, nil)

	code, env := app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	code, _ = app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)

	other, err := middleware.IssueAdminToken([]byte("other-secret"), uuid.NewString(), "ADMIN", time.Hour)
	require.NoError(t, err)
	code, _ = app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, other)
	assert.Equal(t, http.StatusUnauthorized, code)

	reseller, err := middleware.IssueAdminToken(testSecret, uuid.NewString(), "RESELLER", time.Hour)
	require.NoError(t, err)
	code, env = app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, reseller)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Code)

	expired, err := middleware.IssueAdminToken(testSecret, uuid.NewString(), "ADMIN", -time.Minute)
	require.NoError(t, err)
	code, _ = app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, app.token)
	assert.Equal(t, http.StatusOK, code)
}

func TestPublishAndProcessEvents(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, nil)

	code, env := app.do(t, http.MethodPost, "/v1/events", map[string]interface{}{
		"type":           "PURCHASE_ORDER_CREATED",
		"payload":        map[string]string{"purchaseOrderId": "po-1"},
		"aggregate_type": "PurchaseOrder",
		"aggregate_id":   "po-1",
	}, "")
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = app.do(t, http.MethodPost, "/v1/events", map[string]interface{}{"payload": map[string]string{}}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)

	code, env = app.do(t, http.MethodPost, "/v1/admin/outbox/process", map[string]interface{}{"limit": 10}, app.token)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.JSONEq(t, `{"count":1}`, string(env.Data))

	recs, err := app.store.Audit().ListByEventType(ctx, "PURCHASE_ORDER_CREATED")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "po-1", *recs[0].AggregateID)

	code, env = app.do(t, http.MethodGet, "/v1/admin/outbox/status", nil, app.token)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"pending":0,"processing":0,"published":1,"failed":0}`, string(env.Data))

	code, env = app.do(t, http.MethodGet, "/v1/admin/outbox/status/by-type?types=PURCHASE_ORDER_CREATED,RFQ_CREATED", nil, app.token)
	require.Equal(t, http.StatusOK, code)
	var byType []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &byType))
	require.Len(t, byType, 2)
	assert.Equal(t, "PURCHASE_ORDER_CREATED", byType[0]["type"])
	assert.EqualValues(t, 1, byType[0]["published"])
	assert.EqualValues(t, 0, byType[1]["published"])

	code, _ = app.do(t, http.MethodPost, "/v1/admin/outbox/process", map[string]interface{}{"status": "processing"}, app.token)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = app.do(t, http.MethodPost, "/v1/admin/outbox/retry", nil, app.token)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":0}`, string(env.Data))

	code, _ = app.do(t, http.MethodPost, "/v1/admin/outbox/requeue-stale", map[string]interface{}{"older_than_minutes": 0}, app.token)
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = app.do(t, http.MethodPost, "/v1/admin/outbox/requeue-stale", map[string]interface{}{"older_than_minutes": 15}, app.token)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":0}`, string(env.Data))

	today := time.Now().UTC()
	code, env = app.do(t, http.MethodGet, "/v1/admin/outbox/series?start="+today.Add(-24*time.Hour).Format(time.RFC3339)+"&end="+today.Add(time.Hour).Format(time.RFC3339), nil, app.token)
	require.Equal(t, http.StatusOK, code, env.Error)
	var series []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &series))
	require.Len(t, series, 1)
	assert.Equal(t, today.Format(time.DateOnly), series[0]["day"])

	code, _ = app.do(t, http.MethodGet, "/v1/admin/outbox/series?start=2026-01-02&end=2026-01-01", nil, app.token)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = app.do(t, http.MethodGet, "/v1/admin/outbox/failed?limit=5", nil, app.token)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"events":[]}`, string(env.Data))
}

func seedResellerOrder(t *testing.T, store *memory.Store) (sale.SaleOrder, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	manager := &user.User{Email: "manager@example.com", Role: user.RoleStoreManager}
	require.NoError(t, store.Users().Create(ctx, manager))
	shop := &inventory.Store{Name: "Harbour", ManagerID: &manager.ID}
	require.NoError(t, store.Stock().CreateStore(ctx, shop))

	variant := uuid.New()
	require.NoError(t, store.Stock().Upsert(ctx, &inventory.Stock{StoreID: shop.ID, ProductVariantID: variant, Quantity: 5}))

	state := string(workflow.SalePaymentInitiated)
	order := sale.SaleOrder{
		Type:          sale.TypeReseller,
		Status:        sale.StatusPending,
		Phase:         sale.PhaseSale,
		TotalAmount:   decimal.NewFromInt(100),
		WorkflowState: &state,
		StoreID:       shop.ID,
		BillerID:      uuid.New(),
	}
	require.NoError(t, store.Sales().CreateOrder(ctx, &order))

	reseller := uuid.New()
	require.NoError(t, store.Sales().CreateResellerSale(ctx, &sale.ResellerSale{
		SaleOrderID: order.ID,
		ResellerID:  reseller,
		Items:       []sale.ResellerSaleItem{{ProductVariantID: variant, Quantity: 2, UnitPrice: decimal.NewFromInt(50)}},
	}))
	require.NoError(t, store.Sales().UpsertResellerProfile(ctx, &user.ResellerProfile{
		UserID:      reseller,
		CreditLimit: decimal.NewFromInt(1000),
	}))
	return order, variant
}

func TestPaymentToFulfillmentFlow(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, nil)
	order, variant := seedResellerOrder(t, app.store)
	orderPath := "/v1/orders/" + order.ID.String()

	code, env := app.do(t, http.MethodPost, "/v1/payments", map[string]interface{}{
		"sale_order_id": order.ID.String(),
		"method":        "TRANSFER",
		"amount":        "60",
	}, "")
	require.Equal(t, http.StatusCreated, code, env.Error)
	var payment sale.Payment
	require.NoError(t, json.Unmarshal(env.Data, &payment))
	assert.Equal(t, sale.ChannelReseller, payment.Channel)

	code, env = app.do(t, http.MethodPost, "/v1/payments/"+payment.ID.String()+"/confirm", nil, "")
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = app.do(t, http.MethodPost, "/v1/admin/outbox/process", nil, app.token)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.JSONEq(t, `{"count":1}`, string(env.Data))

	code, env = app.do(t, http.MethodGet, orderPath+"/workflow", nil, "")
	require.Equal(t, http.StatusOK, code, env.Error)
	var snap struct {
		State string `json:"state"`
		Phase string `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, string(workflow.SaleClearedForFulfilment), snap.State)
	assert.Equal(t, string(sale.PhaseFulfillment), snap.Phase)

	stock, err := app.store.Stock().Get(ctx, order.StoreID, variant)
	require.NoError(t, err)
	assert.Equal(t, 2, stock.Reserved)

	code, env = app.do(t, http.MethodPost, "/v1/admin/outbox/process", nil, app.token)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.JSONEq(t, `{"count":3}`, string(env.Data))

	code, env = app.do(t, http.MethodGet, orderPath+"/fulfillment/workflow", nil, "")
	require.Equal(t, http.StatusOK, code, env.Error)
	var fsnap struct {
		State  string `json:"state"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fsnap))
	assert.Equal(t, string(workflow.FulfilmentAllocatingStock), fsnap.State)
	assert.Equal(t, "PENDING", fsnap.Status)

	code, env = app.do(t, http.MethodPut, orderPath+"/fulfillment/status", map[string]string{"status": "delivered"}, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", env.Code)

	code, env = app.do(t, http.MethodPut, orderPath+"/fulfillment/status", map[string]string{"status": "ASSIGNED", "note": "picker on shift"}, "")
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &fsnap))
	assert.Equal(t, string(workflow.FulfilmentReadyForShipment), fsnap.State)

	code, env = app.do(t, http.MethodPost, orderPath+"/workflow/events", map[string]string{"type": "RESET"}, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Code)
}

func TestWorkflowRouteErrors(t *testing.T) {
	app := newTestApp(t, nil)

	code, env := app.do(t, http.MethodGet, "/v1/orders/not-a-uuid/workflow", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)

	code, env = app.do(t, http.MethodGet, "/v1/orders/"+uuid.NewString()+"/workflow", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)

	code, _ = app.do(t, http.MethodPost, "/v1/payments/"+uuid.NewString()+"/confirm", nil, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = app.do(t, http.MethodPost, "/v1/payments", map[string]interface{}{
		"sale_order_id": uuid.NewString(),
		"method":        "CASH",
		"amount":        "-5",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)
}
