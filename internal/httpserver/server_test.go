package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/catalog"
	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/gateway"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/repo/repotest"
	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtSecret = []byte("http-test-secret")

type server struct {
	e     *echo.Echo
	repo  *repo.GormRepo
	gw    *gateway.Fake
	shirt uuid.UUID
}

func newServer(t *testing.T) *server {
	t.Helper()
	r := repo.New(repotest.NewDB(t))
	s := &server{e: echo.New(), repo: r, gw: gateway.NewFake(), shirt: uuid.New()}

	pub := &events.Recorder{}
	ledger := &service.Ledger{Repo: r, Events: pub}
	promos := &service.PromoValidator{Repo: r}
	refunds := &service.RefundOrchestrator{Repo: r, Gateway: s.gw, Ledger: ledger, Events: pub}
	wf := &service.Workflow{Repo: r, Refunds: refunds, Events: pub}
	orders := &service.OrderService{
		Repo:            r,
		Catalog:         catalog.NewStatic(catalog.Product{ID: s.shirt, Name: "Shirt", Price: 600_00}),
		Gateway:         s.gw,
		Promos:          promos,
		Refunds:         refunds,
		Returns:         wf,
		Events:          pub,
		SignatureSecret: []byte("hmac"),
		Currency:        "inr",
	}

	Register(s.e, &Deps{
		Orders:    &OrderHTTP{Svc: orders, Refunds: refunds},
		Returns:   &RequestHTTP{Svc: wf, Kind: domain.ProcessReturn},
		Exchanges: &RequestHTTP{Svc: wf, Kind: domain.ProcessExchange},
		Promos:    &PromoHTTP{Svc: promos},
		Wallet:    &WalletHTTP{Ledger: ledger},
		JWTSecret: jwtSecret,
	})
	return s
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(tokens.AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, jwtSecret)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: tok})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[transport.ErrorResponse](t, rec).Error
}

func (s *server) seed(t *testing.T, o *models.Order) *models.Order {
	t.Helper()
	if o.UserID == uuid.Nil {
		o.UserID = uuid.New()
	}
	o.Items = []models.OrderItem{{ProductID: s.shirt, Quantity: 1, UnitPrice: o.Subtotal, LineTotal: o.Subtotal}}
	require.NoError(t, s.repo.CreateOrder(context.Background(), o))
	return o
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest},
		{&domain.TransitionError{From: "A", To: "B"}, http.StatusBadRequest},
		{&domain.PromoError{Reason: domain.PromoAlreadyUsed}, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound},
		{repo.ErrStale, http.StatusConflict},
		{&domain.GatewayError{Op: "refund", Err: errors.New("boom")}, http.StatusBadGateway},
		{errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "%v", tc.err)
	}
}

func TestPublicRoutes(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing access token", errorOf(t, rec))
}

func TestPlaceGetCancel(t *testing.T) {
	s := newServer(t)
	user := uuid.New()
	tok := token(t, user, "user")

	rec := s.do(t, http.MethodPost, "/api/v1/orders", tok, transport.PlaceOrderRequest{
		Items:         []transport.OrderItemInput{{ProductID: s.shirt, Quantity: 2}},
		PaymentMethod: "COD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, int64(1200_00), order.Total)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.Order](t, rec).Items, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), token(t, uuid.New(), "user"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders?page=1&size=5", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[transport.ListResponse[models.Order]](t, rec)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 5, list.Size)

	rec = s.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[models.Order](t, rec)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, domain.RefundWallet, cancelled.RefundMethod)
	assert.Equal(t, domain.RefundStatusCompleted, cancelled.RefundStatus)

	rec = s.do(t, http.MethodGet, "/api/v1/wallet", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decode[transport.WalletResponse](t, rec)
	assert.Equal(t, int64(1200_00), wallet.Balance)
	require.Len(t, wallet.Transactions.Items, 1)
	assert.Equal(t, models.WalletCredit, wallet.Transactions.Items[0].Type)
}

func TestPlaceValidation(t *testing.T) {
	s := newServer(t)
	tok := token(t, uuid.New(), "user")

	rec := s.do(t, http.MethodPost, "/api/v1/orders", tok, map[string]any{"paymentMethod": "CARD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "validation")
}

func TestCancelGatewayFailure(t *testing.T) {
	s := newServer(t)
	s.gw.FailRefunds = true
	user := uuid.New()
	o := s.seed(t, &models.Order{
		UserID: user, Status: domain.StatusConfirmed,
		PaymentMethod: domain.PaymentOnline, PaymentStatus: domain.PaymentPaid,
		GatewayOrderRef: "order_1", GatewayPaymentRef: "pi_1",
		Subtotal: 600_00, Shipping: 50_00, Total: 650_00,
	})

	rec := s.do(t, http.MethodPost, "/api/v1/orders/"+o.ID.String()+"/cancel", token(t, user, "user"), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "payment gateway error", errorOf(t, rec))

	stored, err := s.repo.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
}

func TestAdminStatusEndpoint(t *testing.T) {
	s := newServer(t)
	o := s.seed(t, &models.Order{
		Status: domain.StatusConfirmed, PaymentMethod: domain.PaymentCOD, PaymentStatus: domain.PaymentPending,
		Subtotal: 600_00, Shipping: 50_00, Total: 650_00,
	})
	adminTok := token(t, uuid.New(), tokens.RoleAdmin)
	path := "/api/v1/admin/orders/" + o.ID.String() + "/status"

	rec := s.do(t, http.MethodPatch, path, token(t, o.UserID, "user"), transport.UpdateStatusRequest{Status: "SHIPPED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, adminTok, transport.UpdateStatusRequest{Status: "DELIVERED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Transition CONFIRMED → DELIVERED not allowed", errorOf(t, rec))

	rec = s.do(t, http.MethodPatch, path, adminTok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/admin/orders/"+uuid.NewString()+"/status", adminTok, transport.UpdateStatusRequest{Status: "SHIPPED"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, path, adminTok, transport.UpdateStatusRequest{Status: "SHIPPED", CourierName: "DTDC", TrackingID: "T1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusShipped, decode[models.Order](t, rec).Status)
}

func TestReturnAndExchangeRoutes(t *testing.T) {
	s := newServer(t)
	adminTok := token(t, uuid.New(), tokens.RoleAdmin)
	delivered := func() *models.Order {
		return s.seed(t, &models.Order{
			Status: domain.StatusDelivered, PaymentMethod: domain.PaymentCOD, PaymentStatus: domain.PaymentPaid,
			Subtotal: 600_00, Shipping: 50_00, Total: 650_00,
		})
	}

	ret := delivered()
	userTok := token(t, ret.UserID, "user")
	rec := s.do(t, http.MethodPost, "/api/v1/orders/"+ret.ID.String()+"/return", userTok, transport.CreateRequestRequest{Reason: "too small"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rr := decode[models.ReturnRequest](t, rec)
	assert.Equal(t, domain.RequestRequested, rr.Status)

	rec = s.do(t, http.MethodPost, "/api/v1/orders/"+ret.ID.String()+"/return", userTok, transport.CreateRequestRequest{Reason: "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/returns/"+rr.ID.String()+"/review", adminTok, transport.ReviewRequest{Action: "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RequestApproved, decode[models.RequestBase](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/wallet", userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(650_00), decode[transport.WalletResponse](t, rec).Balance)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/returns/"+rr.ID.String()+"/advance", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RequestPickupScheduled, decode[models.RequestBase](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/returns/"+rr.ID.String()+"/advance", adminTok, transport.AdvanceRequest{Status: "REFUND_COMPLETED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/returns/"+rr.ID.String()+"/complete", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RequestRefundCompleted, decode[models.RequestBase](t, rec).Status)

	ex := delivered()
	rec = s.do(t, http.MethodPost, "/api/v1/orders/"+ex.ID.String()+"/exchange", token(t, ex.UserID, "user"),
		transport.CreateRequestRequest{Reason: "wrong colour", NewColor: "red"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	er := decode[models.ExchangeRequest](t, rec)
	assert.Equal(t, "red", er.NewColor)

	rec = s.do(t, http.MethodPatch, "/api/v1/admin/exchanges/"+er.ID.String(), adminTok, transport.ReviewRequest{Status: "REJECTED", Note: "worn"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[models.RequestBase](t, rec)
	assert.Equal(t, domain.RequestRejected, reviewed.Status)
	assert.Equal(t, "worn", reviewed.AdminNote)

	rec = s.do(t, http.MethodPatch, "/api/v1/admin/exchanges/"+er.ID.String(), adminTok, transport.ReviewRequest{Status: "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromoRoutes(t *testing.T) {
	s := newServer(t)
	adminTok := token(t, uuid.New(), tokens.RoleAdmin)
	user := uuid.New()
	userTok := token(t, user, "user")

	create := transport.CreatePromoRequest{Code: "WELCOME", DiscountType: "PERCENT", DiscountValue: 10, MinOrderValue: 500_00}
	rec := s.do(t, http.MethodPost, "/api/v1/admin/promos", userTok, create)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/promos", adminTok, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/admin/promos", adminTok, create)
	assert.Equal(t, http.StatusConflict, rec.Code)

	bad := create
	bad.Code, bad.DiscountValue = "HUGE", 150
	rec = s.do(t, http.MethodPost, "/api/v1/admin/promos", adminTok, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/promos/validate", userTok, transport.ValidatePromoRequest{PromoCode: "welcome", Subtotal: 1200_00})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, transport.PromoQuote{Code: "WELCOME", Discount: 120_00}, decode[transport.PromoQuote](t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/promos/validate", userTok, transport.ValidatePromoRequest{PromoCode: "WELCOME", Subtotal: 100_00})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.PromoBelowMinimum), errorOf(t, rec))

	ok, err := s.repo.RecordPromoUsage(context.Background(), &models.PromoCodeUsage{UserID: user, Code: "WELCOME", OrderID: uuid.New()})
	require.NoError(t, err)
	require.True(t, ok)
	rec = s.do(t, http.MethodPost, "/api/v1/promos/validate", userTok, transport.ValidatePromoRequest{PromoCode: "WELCOME", Subtotal: 1200_00})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.PromoAlreadyUsed), errorOf(t, rec))

	inactive := false
	rec = s.do(t, http.MethodPatch, "/api/v1/admin/promos/WELCOME", adminTok, transport.UpdatePromoRequest{IsActive: &inactive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[models.PromoCode](t, rec).IsActive)

	rec = s.do(t, http.MethodPost, "/api/v1/promos/validate", token(t, uuid.New(), "user"), transport.ValidatePromoRequest{PromoCode: "WELCOME", Subtotal: 1200_00})
	assert.Equal(t, string(domain.PromoInvalidCode), errorOf(t, rec))
}

func TestVerifyPaymentRoute(t *testing.T) {
	s := newServer(t)
	user := uuid.New()
	o := s.seed(t, &models.Order{
		UserID: user, Status: domain.StatusPending,
		PaymentMethod: domain.PaymentOnline, PaymentStatus: domain.PaymentPending, GatewayOrderRef: "order_9",
		Subtotal: 600_00, Shipping: 50_00, Total: 650_00,
	})
	tok := token(t, user, "user")
	req := transport.VerifyPaymentRequest{OrderID: o.ID, GatewayOrderID: "order_9", GatewayPaymentID: "pi_9", GatewaySignature: "00"}

	rec := s.do(t, http.MethodPost, "/api/v1/payments/verify", tok, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req.GatewaySignature = gateway.Sign([]byte("hmac"), "order_9", "pi_9")
	rec = s.do(t, http.MethodPost, "/api/v1/payments/verify", tok, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[models.Order](t, rec)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, domain.StatusConfirmed, paid.Status)
}

func TestAdminWalletAdjust(t *testing.T) {
	s := newServer(t)
	adminTok := token(t, uuid.New(), tokens.RoleAdmin)
	user := uuid.New()
	path := "/api/v1/admin/wallet/" + user.String()

	rec := s.do(t, http.MethodPost, path, adminTok, transport.WalletAdjustRequest{Type: "DEBIT", Amount: 10_00})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path, adminTok, transport.WalletAdjustRequest{Type: "CREDIT", Amount: 25_00, Reason: "GOODWILL"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, path, adminTok, transport.WalletAdjustRequest{Type: "DEBIT", Amount: 10_00})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/wallet", token(t, user, "user"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decode[transport.WalletResponse](t, rec)
	assert.Equal(t, int64(15_00), wallet.Balance)
	assert.Equal(t, int64(2), wallet.Transactions.Total)

	rec = s.do(t, http.MethodPost, path, adminTok, transport.WalletAdjustRequest{Type: "REFUND", Amount: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
