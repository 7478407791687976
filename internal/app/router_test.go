package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/handler"
	"dispatch/internal/repository"
)

const (
	testAdmin  int64 = 100
	testClient int64 = 200
	testDriver int64 = 300
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", ShutdownTimeout: time.Second},
		Database:  config.DatabaseConfig{Backend: config.BackendMemory},
		Session:   config.SessionConfig{Backend: config.BackendMemory, TTL: time.Hour},
		Lock:      config.LockConfig{Backend: config.BackendLocal, Wait: time.Second},
		Messaging: config.MessagingConfig{Backend: config.BackendLog},
		Dispatch:  config.DispatchConfig{AdminIDs: []int64{testAdmin}, ServiceCity: "Svetlogorsk"},
		LogLevel:  "error",
	}
}

type testApp struct {
	engine *gin.Engine
	store  repository.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	var ta testApp
	app := fx.New(
		Options(fx.Replace(testConfig())),
		fx.NopLogger,
		fx.Populate(&ta.engine, &ta.store),
	)
	if err := app.Err(); err != nil {
		t.Fatalf("fx app failed: %v", err)
	}
	return &ta
}

func (ta *testApp) do(t *testing.T, method, path string, actor int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != 0 {
		req.Header.Set("X-Actor-ID", strconv.FormatInt(actor, 10))
	}
	rec := httptest.NewRecorder()
	ta.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// ──────────────────────────────────────────────
// GRAPH
// ──────────────────────────────────────────────

func TestOptions_BuildsGraphWithoutRedis(t *testing.T) {
	var (
		client *redis.Client
		server *http.Server
	)
	app := fx.New(
		Options(fx.Replace(testConfig())),
		fx.NopLogger,
		fx.Populate(&client, &server),
	)
	if err := app.Err(); err != nil {
		t.Fatalf("fx app failed: %v", err)
	}
	if client != nil {
		t.Error("expected no redis client for memory backends")
	}
	if server == nil || server.Handler == nil {
		t.Fatal("expected an http server with a handler")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

// ──────────────────────────────────────────────
// HTTP
// ──────────────────────────────────────────────

func TestRouter_HealthAndActorChecks(t *testing.T) {
	ta := newTestApp(t)

	expectStatus(t, ta.do(t, http.MethodGet, "/health", 0, nil), http.StatusOK)
	expectStatus(t, ta.do(t, http.MethodGet, "/v1/orders", 0, nil), http.StatusUnauthorized)
	expectStatus(t, ta.do(t, http.MethodGet, "/v1/admin/stats", testClient, nil), http.StatusForbidden)
	expectStatus(t, ta.do(t, http.MethodGet, "/v1/admin/stats", testAdmin, nil), http.StatusOK)
}

func TestRouter_NegotiatedTrip(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	expectStatus(t, ta.do(t, http.MethodPut, "/v1/users/me", testClient,
		handler.TouchRequest{FirstName: "Anna"}), http.StatusOK)

	rec := ta.do(t, http.MethodPost, "/v1/orders", testClient, handler.CreateOrderRequest{
		FromAddress: "Svetlogorsk, Lenina 1",
		ToAddress:   "Airport",
	})
	expectStatus(t, rec, http.StatusCreated)
	order := decode[handler.OrderResponse](t, rec)
	if order.Status != string(domain.OrderStatusNew) || order.Number != 1 {
		t.Fatalf("unexpected order %+v", order)
	}

	rec = ta.do(t, http.MethodPost, "/v1/admin/orders/"+order.ID+"/price", testAdmin, handler.PriceRequest{Price: -5})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ta.do(t, http.MethodPost, "/v1/admin/orders/"+order.ID+"/price", testAdmin, handler.PriceRequest{Price: 500})
	expectStatus(t, rec, http.StatusOK)

	rec = ta.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/counter", testClient, handler.CounterOfferRequest{Amount: 400})
	expectStatus(t, rec, http.StatusOK)

	rec = ta.do(t, http.MethodPost, "/v1/admin/orders/"+order.ID+"/counter/accept", testAdmin, nil)
	expectStatus(t, rec, http.StatusOK)
	accepted := decode[handler.OrderResponse](t, rec)
	if accepted.Status != string(domain.OrderStatusAccepted) || accepted.Price == nil || *accepted.Price != 400 {
		t.Fatalf("expected ACCEPTED at 400, got %+v", accepted)
	}

	driver := &domain.Driver{ExternalID: testDriver, Name: "Ivan", Approved: true, DutyStatus: domain.DutyStatusOnDuty}
	if err := ta.store.Drivers().Create(ctx, driver); err != nil {
		t.Fatalf("create driver: %v", err)
	}

	rec = ta.do(t, http.MethodPost, "/v1/admin/orders/"+order.ID+"/assign", testAdmin, handler.AssignRequest{DriverID: driver.ID})
	expectStatus(t, rec, http.StatusOK)

	rec = ta.do(t, http.MethodPost, "/v1/admin/orders/"+order.ID+"/assign", testAdmin, handler.AssignRequest{DriverID: driver.ID})
	expectStatus(t, rec, http.StatusConflict)

	rec = ta.do(t, http.MethodPost, "/v1/drivers/me/orders/"+order.ID+"/complete", testDriver, nil)
	expectStatus(t, rec, http.StatusOK)
	done := decode[handler.CompletionResponse](t, rec)
	if done.Earning != 400 || done.DutyStatus != string(domain.DutyStatusOnDuty) {
		t.Errorf("unexpected completion %+v", done)
	}

	rec = ta.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/review", testClient, handler.RateRequest{Rating: 5})
	expectStatus(t, rec, http.StatusCreated)
	rec = ta.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/review", testClient, handler.RateRequest{Rating: 4})
	expectStatus(t, rec, http.StatusConflict)

	rec = ta.do(t, http.MethodGet, "/v1/drivers/me/earnings", testDriver, nil)
	expectStatus(t, rec, http.StatusOK)
	if earnings := decode[handler.EarningsResponse](t, rec); earnings.Total != 400 {
		t.Errorf("expected total earnings 400, got %v", earnings.Total)
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	ta := newTestApp(t)

	expectStatus(t, ta.do(t, http.MethodPut, "/v1/users/me", testClient, handler.TouchRequest{FirstName: "Anna"}), http.StatusOK)
	expectStatus(t, ta.do(t, http.MethodPut, "/v1/users/me", testClient+1, handler.TouchRequest{FirstName: "Boris"}), http.StatusOK)

	rec := ta.do(t, http.MethodPost, "/v1/orders", testClient, handler.CreateOrderRequest{
		FromAddress: "Kaliningrad", ToAddress: "Airport",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ta.do(t, http.MethodPost, "/v1/orders", testClient, handler.CreateOrderRequest{
		FromAddress: "Svetlogorsk", ToAddress: "Airport",
	})
	expectStatus(t, rec, http.StatusCreated)
	order := decode[handler.OrderResponse](t, rec)

	// Another client's order is reported as missing.
	expectStatus(t, ta.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/accept", testClient+1, nil), http.StatusNotFound)
	// No price yet.
	expectStatus(t, ta.do(t, http.MethodPost, "/v1/orders/"+order.ID+"/accept", testClient, nil), http.StatusConflict)
	expectStatus(t, ta.do(t, http.MethodPost, "/v1/admin/orders/missing/price", testAdmin, handler.PriceRequest{Price: 100}), http.StatusNotFound)
	expectStatus(t, ta.do(t, http.MethodGet, "/v1/drivers/me", testClient, nil), http.StatusNotFound)
}

func TestRouter_ConversationRepeatsPrompt(t *testing.T) {
	ta := newTestApp(t)

	expectStatus(t, ta.do(t, http.MethodPut, "/v1/users/me", testClient, handler.TouchRequest{FirstName: "Anna"}), http.StatusOK)
	expectStatus(t, ta.do(t, http.MethodPost, "/v1/drafts", testClient, nil), http.StatusCreated)

	rec := ta.do(t, http.MethodPost, "/v1/chat/input", testClient, handler.InputRequest{Text: "Moscow"})
	expectStatus(t, rec, http.StatusBadRequest)
	errResp := decode[handler.ErrorResponse](t, rec)
	if errResp.Prompt == nil || errResp.Prompt.Kind != string(domain.PromptOrderFrom) {
		t.Fatalf("expected the ORDER_FROM prompt to be repeated, got %+v", errResp)
	}

	rec = ta.do(t, http.MethodPost, "/v1/chat/input", testClient, handler.InputRequest{Text: "Svetlogorsk, Lenina 1"})
	expectStatus(t, rec, http.StatusOK)
	reply := decode[handler.ReplyResponse](t, rec)
	if reply.Prompt == nil || reply.Prompt.Kind != string(domain.PromptOrderTo) {
		t.Fatalf("expected ORDER_TO, got %+v", reply.Prompt)
	}
}
