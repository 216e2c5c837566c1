package service

import (
	"context"
	"testing"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/cache"
	"github.com/Skotchmaster/fulfillment/internal/catalog"
	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/gateway"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/repo/repotest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	repo    *repo.GormRepo
	gw      *gateway.Fake
	events  *events.Recorder
	catalog *catalog.Static
	cache   *cache.Memory
	ledger  *Ledger
	promos  *PromoValidator
	refunds *RefundOrchestrator
	returns *Workflow
	orders  *OrderService
	secret  []byte

	shirt uuid.UUID // 600_00
	socks uuid.UUID // 150_00
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	r := repo.New(repotest.NewDB(t))
	now := func() time.Time { return fixedNow }

	env := &testEnv{
		repo:   r,
		gw:     gateway.NewFake(),
		events: &events.Recorder{},
		cache:  cache.NewMemory(),
		secret: []byte("signing-secret"),
		shirt:  uuid.New(),
		socks:  uuid.New(),
	}
	env.catalog = catalog.NewStatic(
		catalog.Product{ID: env.shirt, Name: "Shirt", Price: 600_00},
		catalog.Product{ID: env.socks, Name: "Socks", Price: 150_00},
	)
	env.ledger = &Ledger{Repo: r, Cache: env.cache, Events: env.events}
	env.promos = &PromoValidator{Repo: r, Now: now}
	env.refunds = &RefundOrchestrator{Repo: r, Gateway: env.gw, Ledger: env.ledger, Events: env.events, Now: now}
	env.returns = &Workflow{Repo: r, Refunds: env.refunds, Events: env.events, Now: now}
	env.orders = &OrderService{
		Repo:            r,
		Catalog:         env.catalog,
		Gateway:         env.gw,
		Promos:          env.promos,
		Refunds:         env.refunds,
		Returns:         env.returns,
		Events:          env.events,
		SignatureSecret: env.secret,
		Currency:        "inr",
		Now:             now,
	}
	return env
}

var admin = Actor{UserID: uuid.New(), Admin: true}

// seedOrder stores an order directly, bypassing placement.
func (e *testEnv) seedOrder(t *testing.T, mutate func(o *models.Order)) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:        uuid.New(),
		Status:        domain.StatusConfirmed,
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: domain.PaymentCOD,
		Subtotal:      600_00,
		Shipping:      50_00,
		Total:         650_00,
		Items:         []models.OrderItem{{ProductID: e.shirt, Quantity: 1, UnitPrice: 600_00, LineTotal: 600_00}},
	}
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, e.repo.CreateOrder(context.Background(), o))
	return o
}

func onlinePaid(status domain.OrderStatus) func(o *models.Order) {
	return func(o *models.Order) {
		o.Status = status
		o.PaymentMethod = domain.PaymentOnline
		o.PaymentStatus = domain.PaymentPaid
		o.GatewayOrderRef = "order_ref"
		o.GatewayPaymentRef = "pi_123"
	}
}

func codAt(status domain.OrderStatus) func(o *models.Order) {
	return func(o *models.Order) { o.Status = status }
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	o, err := e.repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) walletEntries(t *testing.T, userID uuid.UUID) []models.WalletTransaction {
	t.Helper()
	entries, err := e.repo.ListWalletTransactions(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	return entries
}

func owner(o *models.Order) Actor { return Actor{UserID: o.UserID} }
