package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
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
	paymentrepo "github.com/smallbiznis/fotoyou/internal/payment/repository"
	paymentservice "github.com/smallbiznis/fotoyou/internal/payment/service"
	"github.com/smallbiznis/fotoyou/internal/purchase/domain"
	"github.com/smallbiznis/fotoyou/internal/purchase/service"
	"github.com/smallbiznis/fotoyou/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const notifyURL = "https://fotoyou.test/api/payment/notification"

var buyer = domain.Buyer{UserID: "user-u", Name: "Dewi", Email: "dewi@example.com"}

type fixture struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	store   entitlementdomain.Store
	gateway *paymentmocks.MockGateway
	client  *catalogmocks.MockClient
	catalog catalogdomain.Service
	svc     domain.Service
}

func newFixture(t *testing.T, policy config.PurchasePolicy) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	db := testutil.OpenDB(t)
	log := zaptest.NewLogger(t)
	fc := clock.NewFakeClock(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	holder := config.NewStaticPurchasePolicy(policy)

	store := entitlementservice.NewService(entitlementservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fc,
		Repo:   entitlementrepo.Provide(),
		Policy: holder,
	})
	notificationLog := paymentservice.NewService(paymentservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fc,
		Repo:  paymentrepo.Provide(),
	})

	gateway := paymentmocks.NewMockGateway(ctrl)
	gateway.EXPECT().Provider().Return("midtrans").AnyTimes()
	client := catalogmocks.NewMockClient(ctrl)
	catalog := catalogservice.NewService(catalogservice.Params{Log: log, Client: client, Store: store})

	cfg := config.Config{Payment: config.PaymentConfig{Provider: "midtrans", NotificationURL: notifyURL}}
	svc := service.NewService(service.Params{
		Cfg:             cfg,
		Log:             log,
		Store:           store,
		Gateway:         gateway,
		Catalog:         catalog,
		NotificationLog: notificationLog,
		Policy:          holder,
	})

	return &fixture{db: db, clock: fc, store: store, gateway: gateway, client: client, catalog: catalog, svc: svc}
}

func unverifiedPolicy() config.PurchasePolicy {
	p := config.DefaultPurchasePolicy()
	p.VerifyAmount = false
	return p
}

func pricedStory(id, name string, price int64) *catalogdomain.Story {
	raw, _ := json.Marshal(map[string]any{"id": id, "name": name, "price": price})
	return &catalogdomain.Story{ID: id, Name: name, Price: &price, Raw: raw}
}

func (f *fixture) expectToken(times int) {
	f.gateway.EXPECT().
		CreateTransactionToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order paymentdomain.Order) (*paymentdomain.Transaction, error) {
			return &paymentdomain.Transaction{Token: "tok-" + order.OrderID, RedirectURL: "https://pay.test/" + order.OrderID}, nil
		}).
		Times(times)
}

func (f *fixture) notify(t *testing.T, orderID, transactionStatus, fraudStatus string) (*domain.NotificationResult, error) {
	t.Helper()
	payload := []byte(`{"order_id":"` + orderID + `","transaction_status":"` + transactionStatus + `"}`)
	f.gateway.EXPECT().
		DecodeNotification(gomock.Any(), payload, gomock.Any()).
		Return(&paymentdomain.Notification{
			Provider:          "midtrans",
			OrderID:           orderID,
			TransactionStatus: transactionStatus,
			FraudStatus:       fraudStatus,
			Raw:               payload,
		}, nil)
	return f.svc.HandleNotification(context.Background(), "", payload, http.Header{})
}

func countRows(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Raw(query, args...).Scan(&n).Error)
	return n
}

func TestPurchaseSettlementUnlocksStory(t *testing.T) {
	f := newFixture(t, config.DefaultPurchasePolicy())
	ctx := context.Background()

	f.client.EXPECT().GetStory(gomock.Any(), "S1").Return(pricedStory("S1", "Pantai Kuta", 50000), nil)
	var sent paymentdomain.Order
	f.gateway.EXPECT().
		CreateTransactionToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order paymentdomain.Order) (*paymentdomain.Transaction, error) {
			sent = order
			return &paymentdomain.Transaction{Token: "snap-token", RedirectURL: "https://pay.test/snap-token"}, nil
		})

	resp, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "spoofed", Amount: 50000})
	require.NoError(t, err)
	assert.Equal(t, "snap-token", resp.Token)
	assert.Equal(t, "https://pay.test/snap-token", resp.RedirectURL)
	assert.Regexp(t, `^FOTOYOU-S1-\d+$`, resp.OrderID)

	assert.Equal(t, resp.OrderID, sent.OrderID)
	assert.Equal(t, int64(50000), sent.Amount)
	assert.Equal(t, "S1", sent.ItemID)
	assert.Equal(t, "Unlock Watermark: Pantai Kuta", sent.ItemName, "catalog name wins over the client name")
	assert.Equal(t, "Dewi", sent.BuyerName)
	assert.Equal(t, "dewi@example.com", sent.BuyerEmail)
	assert.Equal(t, notifyURL, sent.NotificationURL)

	purchase, err := f.store.FindByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.StatusPending, purchase.Status)

	result, err := f.notify(t, resp.OrderID, "settlement", "accept")
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, entitlementdomain.StatusSuccess, result.Resolved)
	assert.Equal(t, entitlementdomain.StatusSuccess, result.Status)

	f.client.EXPECT().ListStories(gomock.Any(), gomock.Any()).Return([]catalogdomain.Story{
		*pricedStory("S0", "Other", 1000),
		*pricedStory("S1", "Pantai Kuta", 50000),
	}, nil)
	stories, err := f.catalog.ListStories(ctx, buyer.UserID, catalogdomain.ListStoriesRequest{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.False(t, stories[0].Paid)
	assert.True(t, stories[1].Paid)
}

func TestPurchaseExpiredAllowsRetry(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	ctx := context.Background()
	f.expectToken(2)

	first, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000})
	require.NoError(t, err)

	result, err := f.notify(t, first.OrderID, "expire", "")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.StatusFailed, result.Status)

	f.clock.Advance(time.Second)
	second, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000})
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Equal(t, int64(2), countRows(t, f.db, `SELECT COUNT(1) FROM purchases WHERE user_id = ? AND story_id = ?`, buyer.UserID, "S1"))
}

func TestInitiateDuplicateSkipsGateway(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	ctx := context.Background()
	f.expectToken(1)

	req := domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000}
	_, err := f.svc.InitiatePurchase(ctx, req)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.svc.InitiatePurchase(ctx, req)
	assert.True(t, errors.Is(err, domain.ErrAlreadyInitiated), "got %v", err)
}

func TestConcurrentInitiateSingleWinner(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	f.expectToken(1)

	const callers = 8
	var succeeded, conflicted atomic.Int32
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := f.svc.InitiatePurchase(context.Background(), domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrAlreadyInitiated):
				conflicted.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(callers-1), conflicted.Load())
	assert.Equal(t, int64(1), countRows(t, f.db, `SELECT COUNT(1) FROM purchases`))
}

func TestInitiateGatewayFailureLeavesPending(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	ctx := context.Background()

	f.gateway.EXPECT().
		CreateTransactionToken(gomock.Any(), gomock.Any()).
		Return(nil, paymentdomain.ErrGatewayUnavailable)

	req := domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000}
	_, err := f.svc.InitiatePurchase(ctx, req)
	assert.True(t, errors.Is(err, paymentdomain.ErrGatewayUnavailable))
	assert.Equal(t, int64(1), countRows(t, f.db, `SELECT COUNT(1) FROM purchases WHERE status = ?`, entitlementdomain.StatusPending))

	_, err = f.svc.InitiatePurchase(ctx, req)
	assert.True(t, errors.Is(err, domain.ErrAlreadyInitiated))
}

func TestInitiateValidation(t *testing.T) {
	policy := unverifiedPolicy()
	policy.MaxAmount = 100000
	f := newFixture(t, policy)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.InitiateRequest
		want error
	}{
		{name: "missing buyer", req: domain.InitiateRequest{StoryID: "S1", Amount: 1}, want: domain.ErrInvalidBuyer},
		{name: "missing story", req: domain.InitiateRequest{Buyer: buyer, Amount: 1}, want: domain.ErrInvalidStory},
		{name: "zero amount", req: domain.InitiateRequest{Buyer: buyer, StoryID: "S1"}, want: domain.ErrInvalidAmount},
		{name: "negative amount", req: domain.InitiateRequest{Buyer: buyer, StoryID: "S1", Amount: -5}, want: domain.ErrInvalidAmount},
		{name: "over limit", req: domain.InitiateRequest{Buyer: buyer, StoryID: "S1", Amount: 100001}, want: domain.ErrAmountTooHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.InitiatePurchase(ctx, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, int64(0), countRows(t, f.db, `SELECT COUNT(1) FROM purchases`))
}

func TestInitiateAmountVerification(t *testing.T) {
	f := newFixture(t, config.DefaultPurchasePolicy())
	ctx := context.Background()

	f.client.EXPECT().GetStory(gomock.Any(), "S1").Return(pricedStory("S1", "Pantai", 50000), nil)
	_, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrAmountMismatch), "got %v", err)

	f.client.EXPECT().GetStory(gomock.Any(), "gone").Return(nil, catalogdomain.ErrStoryNotFound)
	_, err = f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "gone", Amount: 1})
	assert.True(t, errors.Is(err, catalogdomain.ErrStoryNotFound), "got %v", err)

	assert.Equal(t, int64(0), countRows(t, f.db, `SELECT COUNT(1) FROM purchases`))

	// Unpriced catalog entries accept the reported amount.
	unpriced := &catalogdomain.Story{ID: "S2", Name: "Gunung", Raw: json.RawMessage(`{"id":"S2","name":"Gunung"}`)}
	f.client.EXPECT().GetStory(gomock.Any(), "S2").Return(unpriced, nil)
	f.expectToken(1)
	_, err = f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S2", Amount: 12000})
	require.NoError(t, err)

	var name string
	require.NoError(t, f.db.Raw(`SELECT story_name FROM purchases WHERE story_id = ?`, "S2").Scan(&name).Error)
	assert.Equal(t, "Gunung", name)
}

func TestNotificationIdempotentResolution(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	ctx := context.Background()
	f.expectToken(1)

	resp, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000})
	require.NoError(t, err)

	first, err := f.notify(t, resp.OrderID, "settlement", "accept")
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := f.notify(t, resp.OrderID, "expire", "")
	require.NoError(t, err, "late notifications for settled orders are acknowledged")
	assert.False(t, second.Applied)
	assert.Equal(t, entitlementdomain.StatusFailed, second.Resolved)
	assert.Equal(t, entitlementdomain.StatusSuccess, second.Status)

	purchase, err := f.store.FindByOrderID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.StatusSuccess, purchase.Status)

	assert.Equal(t, int64(2), countRows(t, f.db, `SELECT COUNT(1) FROM payment_notifications WHERE order_id = ?`, resp.OrderID))
	assert.Equal(t, int64(1), countRows(t, f.db, `SELECT COUNT(1) FROM payment_notifications WHERE order_id = ? AND applied = ?`, resp.OrderID, true))
}

func TestNotificationNonTerminalIsNoop(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	ctx := context.Background()
	f.expectToken(1)

	resp, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000})
	require.NoError(t, err)

	for _, tc := range []struct{ status, fraud string }{{"pending", ""}, {"capture", "challenge"}} {
		result, err := f.notify(t, resp.OrderID, tc.status, tc.fraud)
		require.NoError(t, err)
		assert.Empty(t, result.Resolved)
		assert.False(t, result.Applied)
		assert.Equal(t, entitlementdomain.StatusPending, result.Status)
	}
}

func TestNotificationUnknownOrder(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())

	_, err := f.notify(t, "FOTOYOU-nope-1", "settlement", "accept")
	assert.True(t, errors.Is(err, entitlementdomain.ErrPurchaseNotFound), "got %v", err)

	_, err = f.notify(t, "FOTOYOU-nope-2", "pending", "")
	assert.True(t, errors.Is(err, entitlementdomain.ErrPurchaseNotFound), "got %v", err)

	assert.Equal(t, int64(0), countRows(t, f.db, `SELECT COUNT(1) FROM purchases`))
	assert.Equal(t, int64(0), countRows(t, f.db, `SELECT COUNT(1) FROM payment_notifications`))
}

func TestNotificationRejectedPayloadTouchesNothing(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())

	f.gateway.EXPECT().
		DecodeNotification(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, paymentdomain.ErrInvalidSignature)

	_, err := f.svc.HandleNotification(context.Background(), "midtrans", []byte(`{"order_id":"x"}`), http.Header{})
	assert.True(t, errors.Is(err, paymentdomain.ErrInvalidSignature))
	assert.Equal(t, int64(0), countRows(t, f.db, `SELECT COUNT(1) FROM payment_notifications`))
}

func TestNotificationUnknownProvider(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())

	_, err := f.svc.HandleNotification(context.Background(), "stripe", []byte(`{}`), http.Header{})
	assert.True(t, errors.Is(err, paymentdomain.ErrProviderNotFound))
}

func TestGetPurchaseScopedToOwner(t *testing.T) {
	f := newFixture(t, unverifiedPolicy())
	ctx := context.Background()
	f.expectToken(1)

	resp, err := f.svc.InitiatePurchase(ctx, domain.InitiateRequest{Buyer: buyer, StoryID: "S1", StoryName: "Pantai", Amount: 50000})
	require.NoError(t, err)

	purchase, err := f.svc.GetPurchase(ctx, buyer.UserID, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "S1", purchase.StoryID)

	_, err = f.svc.GetPurchase(ctx, "someone-else", resp.OrderID)
	assert.True(t, errors.Is(err, entitlementdomain.ErrPurchaseNotFound))

	items, err := f.svc.ListPurchases(ctx, buyer.UserID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = f.svc.ListPurchases(ctx, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidBuyer))
}
