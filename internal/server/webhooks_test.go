package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	billingrepo "github.com/nutridesk/nutridesk/internal/billing/repository"
	billingservice "github.com/nutridesk/nutridesk/internal/billing/service"
	"github.com/nutridesk/nutridesk/internal/billing/stripe"
	"github.com/nutridesk/nutridesk/internal/clock"
	"github.com/nutridesk/nutridesk/internal/config"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	planrepo "github.com/nutridesk/nutridesk/internal/plan/repository"
	planservice "github.com/nutridesk/nutridesk/internal/plan/service"
	"github.com/nutridesk/nutridesk/internal/server"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
	tenantrepo "github.com/nutridesk/nutridesk/internal/tenant/repository"
	tenantservice "github.com/nutridesk/nutridesk/internal/tenant/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	node   *snowflake.Node
	clk    *clock.FakeClock
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&tenantdomain.Tenant{},
		&plandomain.CatalogEntry{},
		&billingdomain.WebhookEvent{},
		&billingdomain.SubscriptionEventLog{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	tenantSvc := tenantservice.NewService(tenantservice.Params{
		DB: db, Log: log, GenID: node, Repo: tenantrepo.Provide(), Clock: clk,
	})
	planSvc := planservice.NewService(planservice.Params{
		DB: db, Log: log, GenID: node, Repo: planrepo.Provide(), Clock: clk,
	})
	billingSvc := billingservice.NewService(billingservice.Params{
		DB: db, Log: log, GenID: node, Cfg: cfg, Clock: clk,
		Repo: billingrepo.Provide(), Tenants: tenantrepo.Provide(), Plans: planSvc,
	})

	engine := server.NewEngine()
	server.NewServer(server.ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        log,
		Clock:      clk,
		BillingSvc: billingSvc,
		TenantSvc:  tenantSvc,
		PlanSvc:    planSvc,
	})

	return &testServer{engine: engine, db: db, node: node, clk: clk}
}

func webhookConfig() config.Config {
	return config.Config{
		Billing: config.BillingConfig{WebhookSecret: testSecret, TrialDays: 14},
	}
}

func (ts *testServer) seedTenant(t *testing.T, mutate func(*tenantdomain.Tenant)) *tenantdomain.Tenant {
	t.Helper()
	now := ts.clk.Now()
	tenant := &tenantdomain.Tenant{
		ID:                 ts.node.Generate(),
		Name:               "Havn Klinikk",
		Email:              "hei@havn.example",
		SubscriptionStatus: tenantdomain.SubscriptionStatusTrialing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if mutate != nil {
		mutate(tenant)
	}
	require.NoError(t, tenantrepo.Provide().Insert(context.Background(), ts.db, tenant))
	return tenant
}

func (ts *testServer) postWebhook(payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func signedEvent(ts *testServer, eventID, eventType, object string) ([]byte, string) {
	payload := []byte(fmt.Sprintf(`{"id":%q,"type":%q,"created":%d,"data":{"object":%s}}`,
		eventID, eventType, ts.clk.Now().Unix(), object))
	return payload, stripe.SignatureHeader(payload, testSecret, ts.clk.Now().Unix())
}

func TestWebhookLiveness(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestPostWebhookRejectsBadSignature(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{}}}`)
	header := stripe.SignatureHeader(payload, "whsec_wrong", ts.clk.Now().Unix())

	rec := ts.postWebhook(payload, header)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestPostWebhookRejectsMissingHeader(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	rec := ts.postWebhook([]byte(`{"id":"evt_1","type":"x","data":{"object":{}}}`), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostWebhookSamePayloadSignatureAndBodyMustMatch(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	payload, header := signedEvent(ts, "evt_1", "customer.subscription.deleted", `{"id":"sub_1"}`)
	tampered := bytes.Replace(payload, []byte("sub_1"), []byte("sub_2"), 1)

	rec := ts.postWebhook(tampered, header)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostWebhookAcknowledgesUnrecognizedType(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	payload, header := signedEvent(ts, "evt_1", "charge.refunded", `{"id":"ch_1"}`)
	rec := ts.postWebhook(payload, header)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
}

func TestPostWebhookAppliesTransitionAndDeduplicates(t *testing.T) {
	ts := newTestServer(t, webhookConfig())
	tenant := ts.seedTenant(t, func(tn *tenantdomain.Tenant) {
		sub := "sub_del"
		tn.SubscriptionID = &sub
		tn.SubscriptionStatus = tenantdomain.SubscriptionStatusActive
	})

	payload, header := signedEvent(ts, "evt_del", "customer.subscription.deleted", `{"id":"sub_del"}`)
	rec := ts.postWebhook(payload, header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	reloaded, err := tenantrepo.Provide().FindByID(context.Background(), ts.db, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, tenantdomain.SubscriptionStatusCanceled, reloaded.SubscriptionStatus)

	// Redelivery acknowledges without reapplying.
	rec = ts.postWebhook(payload, header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
}

func TestPostWebhookWithoutSecretIsServerError(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	payload := []byte(`{"id":"evt_1","type":"invoice.payment_failed","data":{"object":{}}}`)
	header := stripe.SignatureHeader(payload, testSecret, ts.clk.Now().Unix())

	rec := ts.postWebhook(payload, header)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminAPIKeyGate(t *testing.T) {
	cfg := webhookConfig()
	cfg.AdminAPIKey = "admin_key"
	ts := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	req.Header.Set("X-API-Key", "admin_key")
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAPIOpenWithoutConfiguredKey(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTenantEndpoint(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	body := strings.NewReader(`{"name":"Bjørk Helse","email":"Post@Bjork.example"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID                 string `json:"id"`
		Email              string `json:"email"`
		SubscriptionStatus string `json:"subscription_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "post@bjork.example", created.Email)
	assert.Equal(t, "trialing", created.SubscriptionStatus)
}

func TestCreatePlanEndpointConflicts(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	body := `{"price_id":"price_x","name":"Pro"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetTenantNotFound(t *testing.T) {
	ts := newTestServer(t, webhookConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/123456789", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTenantEvents(t *testing.T) {
	ts := newTestServer(t, webhookConfig())
	tenant := ts.seedTenant(t, func(tn *tenantdomain.Tenant) {
		sub := "sub_ev"
		tn.SubscriptionID = &sub
		tn.SubscriptionStatus = tenantdomain.SubscriptionStatusActive
	})

	payload, header := signedEvent(ts, "evt_ev", "invoice.payment_failed", `{"id":"in_1","subscription":"sub_ev","amount_due":9900,"currency":"nok"}`)
	rec := ts.postWebhook(payload, header)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+tenant.ID.String()+"/events", nil)
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []struct {
			EventType string `json:"event_type"`
			NewStatus string `json:"new_status"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, "invoice.payment_failed", body.Events[0].EventType)
	assert.Equal(t, "past_due", body.Events[0].NewStatus)
}
