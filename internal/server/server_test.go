package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	redis "github.com/redis/go-redis/v9"
	authdomain "github.com/smallbiznis/fotoyou/internal/auth/domain"
	authservice "github.com/smallbiznis/fotoyou/internal/auth/service"
	"github.com/smallbiznis/fotoyou/internal/authorization"
	catalogdomain "github.com/smallbiznis/fotoyou/internal/catalog/domain"
	catalogmocks "github.com/smallbiznis/fotoyou/internal/catalog/domain/mocks"
	catalogservice "github.com/smallbiznis/fotoyou/internal/catalog/service"
	"github.com/smallbiznis/fotoyou/internal/clock"
	"github.com/smallbiznis/fotoyou/internal/config"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	entitlementrepo "github.com/smallbiznis/fotoyou/internal/entitlement/repository"
	entitlementservice "github.com/smallbiznis/fotoyou/internal/entitlement/service"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
	paymentmocks "github.com/smallbiznis/fotoyou/internal/payment/domain/mocks"
	"github.com/smallbiznis/fotoyou/internal/providers/pdf"
	purchaseservice "github.com/smallbiznis/fotoyou/internal/purchase/service"
	"github.com/smallbiznis/fotoyou/internal/ratelimit"
	"github.com/smallbiznis/fotoyou/internal/reconcile"
	"github.com/smallbiznis/fotoyou/internal/testutil"
	"github.com/smallbiznis/fotoyou/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "fotoyou-test-secret"

type testServer struct {
	engine  *gin.Engine
	clock   *clock.FakeClock
	store   entitlementdomain.Store
	gateway *paymentmocks.MockGateway
	client  *catalogmocks.MockClient
}

type serverOption func(*config.Config, *ServerParams)

func withRateLimit(t *testing.T, burst int) serverOption {
	return func(cfg *config.Config, p *ServerParams) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, PurchaseRate: 0.001, PurchaseBurst: burst}
		p.PurchaseLimiter = ratelimit.NewPurchaseLimiter(*cfg, client, p.Log)
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	db := testutil.OpenDB(t)
	log := zaptest.NewLogger(t)
	fc := clock.NewFakeClock(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))

	policy := config.DefaultPurchasePolicy()
	policy.VerifyAmount = false
	holder := config.NewStaticPurchasePolicy(policy)

	cfg := config.Config{
		AppName:       "fotoyou",
		AuthJWTSecret: testSecret,
		Payment: config.PaymentConfig{
			Provider:        "midtrans",
			NotificationURL: "https://fotoyou.test/api/payment/notification",
		},
	}

	store := entitlementservice.NewService(entitlementservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fc,
		Repo:   entitlementrepo.Provide(),
		Policy: holder,
	})

	gateway := paymentmocks.NewMockGateway(ctrl)
	gateway.EXPECT().Provider().Return("midtrans").AnyTimes()
	client := catalogmocks.NewMockClient(ctrl)
	catalog := catalogservice.NewService(catalogservice.Params{Log: log, Client: client, Store: store})

	purchases := purchaseservice.NewService(purchaseservice.Params{
		Cfg:     cfg,
		Log:     log,
		Store:   store,
		Gateway: gateway,
		Catalog: catalog,
		Policy:  holder,
	})

	verifier, err := authservice.NewVerifier(authservice.Params{Cfg: cfg, Log: log})
	require.NoError(t, err)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	rec, err := reconcile.New(reconcile.Params{
		Log:       log,
		Clock:     fc,
		Store:     store,
		Gateway:   gateway,
		Purchases: purchases,
	})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	params := ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		Log:         log,
		Clock:       fc,
		Verifier:    verifier,
		AuthzSvc:    authz,
		CatalogSvc:  catalog,
		PurchaseSvc: purchases,
		Store:       store,
		Reconciler:  rec,
		Receipts:    pdf.New(cfg),
	}
	for _, opt := range opts {
		opt(&params.Cfg, &params)
	}
	NewServer(params)

	return &testServer{engine: engine, clock: fc, store: store, gateway: gateway, client: client}
}

func tokenFor(t *testing.T, identity authdomain.Identity) string {
	t.Helper()
	token, err := authservice.Sign(testSecret, identity, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func buyerToken(t *testing.T) string {
	return tokenFor(t, authdomain.Identity{UserID: "42", Name: "Dewi", Email: "dewi@example.com"})
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return payload["type"].(string)
}

func catalogStory(id, name string, price int64) catalogdomain.Story {
	raw, _ := json.Marshal(map[string]any{"id": id, "name": name, "price": price, "photoUrl": "https://img.test/" + id})
	return catalogdomain.Story{ID: id, Name: name, Price: &price, Raw: raw}
}

func (s *testServer) initiate(t *testing.T, token, storyID string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/payment/initiate", token, map[string]any{
		"storyId":   storyID,
		"storyName": "Story " + storyID,
		"amount":    50000,
	})
}

func (s *testServer) expectToken(times int) {
	s.gateway.EXPECT().
		CreateTransactionToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order paymentdomain.Order) (*paymentdomain.Transaction, error) {
			return &paymentdomain.Transaction{Token: "tok-" + order.OrderID, RedirectURL: "https://pay.test/" + order.OrderID}, nil
		}).
		Times(times)
}

func (s *testServer) expectNotification(payload []byte, orderID, transactionStatus string) {
	s.gateway.EXPECT().
		DecodeNotification(gomock.Any(), payload, gomock.Any()).
		Return(&paymentdomain.Notification{
			Provider:          "midtrans",
			OrderID:           orderID,
			TransactionStatus: transactionStatus,
			FraudStatus:       "accept",
			Raw:               payload,
		}, nil)
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t)

	expired, err := authservice.Sign(testSecret, authdomain.Identity{UserID: "42"}, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	forged, err := authservice.Sign("other-secret", authdomain.Identity{UserID: "42"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing", token: "", status: http.StatusUnauthorized},
		{name: "garbage", token: "not-a-jwt", status: http.StatusForbidden},
		{name: "expired", token: expired, status: http.StatusForbidden},
		{name: "wrong_secret", token: forged, status: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/stories", tc.token, nil)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestListStoriesMarksPaidStories(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	paid, err := s.store.CreatePending(ctx, entitlementdomain.CreatePendingRequest{UserID: "42", StoryID: "S2", StoryName: "Bromo", Amount: 50000})
	require.NoError(t, err)
	_, err = s.store.Resolve(ctx, paid.OrderID, entitlementdomain.StatusSuccess)
	require.NoError(t, err)

	s.client.EXPECT().
		ListStories(gomock.Any(), catalogdomain.ListStoriesRequest{Page: 2, Size: 5, Location: true}).
		Return([]catalogdomain.Story{catalogStory("S1", "Kuta", 25000), catalogStory("S2", "Bromo", 50000)}, nil)

	w := s.do(t, http.MethodGet, "/api/stories?page=2&size=5&location=1", buyerToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, false, body["error"])
	assert.Equal(t, "Stories fetched successfully", body["message"])
	list := body["listStory"].([]any)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	second := list[1].(map[string]any)
	assert.Equal(t, "S1", first["id"])
	assert.Equal(t, "https://img.test/S1", first["photoUrl"])
	assert.Equal(t, false, first["paid"])
	assert.Equal(t, true, second["paid"])
}

func TestListStoriesRejectsBadPaging(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/stories?page=0", buyerToken(t), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorType(t, w))
}

func TestGetStory(t *testing.T) {
	s := newTestServer(t)
	story := catalogStory("S1", "Kuta", 25000)

	s.client.EXPECT().GetStory(gomock.Any(), "S1").Return(&story, nil)
	w := s.do(t, http.MethodGet, "/api/stories/S1", buyerToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Story fetched", body["message"])
	assert.Equal(t, false, body["paid"])
	assert.Equal(t, "Kuta", body["story"].(map[string]any)["name"])

	s.client.EXPECT().GetStory(gomock.Any(), "missing").Return(nil, catalogdomain.ErrStoryNotFound)
	w = s.do(t, http.MethodGet, "/api/stories/missing", buyerToken(t), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInitiatePurchase(t *testing.T) {
	s := newTestServer(t)
	token := buyerToken(t)
	s.expectToken(1)

	w := s.initiate(t, token, "S1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	orderID := body["order_id"].(string)
	assert.Regexp(t, `^FOTOYOU-S1-\d+$`, orderID)
	assert.Equal(t, "tok-"+orderID, body["token"])
	assert.Equal(t, "https://pay.test/"+orderID, body["redirect_url"])

	w = s.initiate(t, token, "S1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorType(t, w))
}

func TestInitiatePurchaseValidation(t *testing.T) {
	s := newTestServer(t)
	token := buyerToken(t)

	w := s.do(t, http.MethodPost, "/api/payment/initiate", token, []byte(`{"storyId":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/payment/initiate", token, map[string]any{"storyId": "S1", "storyName": "Kuta", "amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorType(t, w))
}

func TestInitiatePurchaseGatewayFailure(t *testing.T) {
	s := newTestServer(t)
	s.gateway.EXPECT().
		CreateTransactionToken(gomock.Any(), gomock.Any()).
		Return(nil, paymentdomain.ErrGatewayUnavailable)

	w := s.initiate(t, buyerToken(t), "S1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestInitiatePurchaseRateLimited(t *testing.T) {
	s := newTestServer(t, withRateLimit(t, 1))
	token := buyerToken(t)
	s.expectToken(1)

	w := s.initiate(t, token, "S1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = s.initiate(t, token, "S2")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", errorType(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestPaymentNotificationUnlocksStory(t *testing.T) {
	s := newTestServer(t)
	token := buyerToken(t)
	s.expectToken(1)

	w := s.initiate(t, token, "S1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orderID := decode(t, w)["order_id"].(string)

	payload := []byte(`{"order_id":"` + orderID + `","transaction_status":"settlement"}`)
	s.expectNotification(payload, orderID, "settlement")

	req := httptest.NewRequest(http.MethodPost, "/api/payment/notification", bytes.NewReader(payload))
	req.Header.Set(correlation.HeaderName, "corr-1")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "corr-1", rec.Header().Get(correlation.HeaderName))
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, orderID, body["order_id"])
	assert.Equal(t, true, body["applied"])

	w = s.do(t, http.MethodGet, "/api/purchases/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	purchase := decode(t, w)["purchase"].(map[string]any)
	assert.Equal(t, string(entitlementdomain.StatusSuccess), purchase["status"])

	w = s.do(t, http.MethodGet, "/api/purchases", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["purchases"], 1)

	w = s.do(t, http.MethodGet, "/api/purchases/"+orderID+"/receipt", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment;")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestPaymentNotificationRejected(t *testing.T) {
	s := newTestServer(t)
	payload := []byte(`{"order_id":"FOTOYOU-S1-1","signature_key":"bad"}`)
	s.gateway.EXPECT().
		DecodeNotification(gomock.Any(), payload, gomock.Any()).
		Return(nil, paymentdomain.ErrInvalidSignature)

	w := s.do(t, http.MethodPost, "/api/payment/notification", "", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/payments/webhooks/stripe", "", payload)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseOwnership(t *testing.T) {
	s := newTestServer(t)
	s.expectToken(1)

	w := s.initiate(t, buyerToken(t), "S1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orderID := decode(t, w)["order_id"].(string)

	other := tokenFor(t, authdomain.Identity{UserID: "7", Name: "Budi", Email: "budi@example.com"})
	w = s.do(t, http.MethodGet, "/api/purchases/"+orderID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/purchases/"+orderID+"/receipt", buyerToken(t), nil)
	assert.Equal(t, http.StatusConflict, w.Code, "pending purchases have no receipt")
}

func TestAdminRoutesRequireRole(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	pending, err := s.store.CreatePending(ctx, entitlementdomain.CreatePendingRequest{UserID: "42", StoryID: "S1", StoryName: "Kuta", Amount: 50000})
	require.NoError(t, err)
	s.clock.Advance(time.Second)

	w := s.do(t, http.MethodGet, "/api/admin/purchases", buyerToken(t), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	support := tokenFor(t, authdomain.Identity{UserID: "ops-2", Role: authorization.RoleSupport})
	w = s.do(t, http.MethodGet, "/api/admin/purchases?status=pending&limit=10", support, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["purchases"], 1)

	w = s.do(t, http.MethodGet, "/api/admin/purchases?status=refunded", support, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/purchases/"+pending.OrderID+"/reconcile", support, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.gateway.EXPECT().
		TransactionStatus(gomock.Any(), pending.OrderID).
		Return(&paymentdomain.Notification{
			Provider:          "midtrans",
			OrderID:           pending.OrderID,
			TransactionStatus: "settlement",
			FraudStatus:       "accept",
			StatusCode:        "200",
		}, nil)

	admin := tokenFor(t, authdomain.Identity{UserID: "ops-1", Role: authorization.RoleAdmin})
	w = s.do(t, http.MethodPost, "/api/admin/purchases/"+pending.OrderID+"/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := s.store.FindByOrderID(ctx, pending.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.StatusSuccess, stored.Status)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
