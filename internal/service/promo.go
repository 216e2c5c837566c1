package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/metrics"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/google/uuid"
)

// Quote is a provisional discount. Online orders revalidate it with ConfirmTx once paid.
type Quote struct {
	Code     string
	Discount int64
	Terms    domain.PromoTerms
}

type PromoValidator struct {
	Repo *repo.GormRepo
	Now  func() time.Time
}

// Validate runs the eligibility checks in order and stops at the first failure,
// which is returned as *domain.PromoError.
func (v *PromoValidator) Validate(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Quote, error) {
	q, err := v.validate(ctx, code, subtotal, userID)
	var perr *domain.PromoError
	switch {
	case err == nil:
		metrics.Get().PromoValidations.WithLabelValues("ok").Inc()
	case errors.As(err, &perr):
		metrics.Get().PromoValidations.WithLabelValues(string(perr.Reason)).Inc()
	default:
		metrics.Get().PromoValidations.WithLabelValues("error").Inc()
	}
	return q, err
}

func (v *PromoValidator) validate(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Quote, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, &domain.PromoError{Reason: domain.PromoInvalidCode}
	}
	promo, err := v.Repo.GetPromo(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.PromoError{Reason: domain.PromoInvalidCode}
	}
	if err != nil {
		return nil, err
	}
	terms := promo.Terms()
	if !terms.Usable(clock(v.Now).now()) {
		return nil, &domain.PromoError{Reason: domain.PromoInvalidCode}
	}
	if subtotal < terms.MinOrderValue {
		return nil, &domain.PromoError{Reason: domain.PromoBelowMinimum}
	}
	if terms.FirstOrderOnly {
		n, err := v.Repo.CountOrders(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, &domain.PromoError{Reason: domain.PromoNotFirstOrder}
		}
	}
	used, err := v.Repo.HasPromoUsage(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, &domain.PromoError{Reason: domain.PromoAlreadyUsed}
	}
	return &Quote{Code: code, Discount: domain.Discount(terms, subtotal), Terms: terms}, nil
}

// RecordUsageTx inserts the single-use row inside tx. A second use is a conflict.
func RecordUsageTx(ctx context.Context, tx *repo.GormRepo, userID uuid.UUID, code string, orderID uuid.UUID) error {
	inserted, err := tx.RecordPromoUsage(ctx, &models.PromoCodeUsage{UserID: userID, Code: code, OrderID: orderID})
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%w: promo code %s already used", domain.ErrConflict, code)
	}
	return nil
}

// ConfirmTx revalidates a provisional discount when its payment is confirmed and records the
// use inside tx. A promo that has disappeared, expired or been deactivated is a *domain.PromoError;
// a second use is a conflict.
func (v *PromoValidator) ConfirmTx(ctx context.Context, tx *repo.GormRepo, userID uuid.UUID, code string, orderID uuid.UUID) error {
	promo, err := tx.GetPromo(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.PromoError{Reason: domain.PromoInvalidCode}
	}
	if err != nil {
		return err
	}
	if !promo.Terms().Usable(clock(v.Now).now()) {
		return &domain.PromoError{Reason: domain.PromoInvalidCode}
	}
	return RecordUsageTx(ctx, tx, userID, code, orderID)
}

// promoRejected reports whether err from ConfirmTx means the discount no longer applies.
func promoRejected(err error) bool {
	var perr *domain.PromoError
	return errors.As(err, &perr) || errors.Is(err, domain.ErrConflict)
}

func (v *PromoValidator) CreatePromo(ctx context.Context, req transport.CreatePromoRequest) (*models.PromoCode, error) {
	promo := &models.PromoCode{
		Code:           domain.NormalizeCode(req.Code),
		DiscountType:   domain.DiscountType(req.DiscountType),
		DiscountValue:  req.DiscountValue,
		MinOrderValue:  req.MinOrderValue,
		FirstOrderOnly: req.FirstOrderOnly,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}
	if err := checkPromo(promo); err != nil {
		return nil, err
	}
	if err := v.Repo.CreatePromo(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

func (v *PromoValidator) UpdatePromo(ctx context.Context, code string, req transport.UpdatePromoRequest) (*models.PromoCode, error) {
	promo, err := v.Repo.GetPromo(ctx, domain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if req.DiscountType != nil {
		promo.DiscountType = domain.DiscountType(*req.DiscountType)
	}
	if req.DiscountValue != nil {
		promo.DiscountValue = *req.DiscountValue
	}
	if req.MinOrderValue != nil {
		promo.MinOrderValue = *req.MinOrderValue
	}
	if req.FirstOrderOnly != nil {
		promo.FirstOrderOnly = *req.FirstOrderOnly
	}
	if req.ExpiresAt != nil {
		promo.ExpiresAt = req.ExpiresAt
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}
	if err := checkPromo(promo); err != nil {
		return nil, err
	}
	if err := v.Repo.SavePromo(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

func checkPromo(p *models.PromoCode) error {
	switch {
	case p.Code == "":
		return fmt.Errorf("%w: code required", domain.ErrValidation)
	case p.DiscountType != domain.DiscountPercent && p.DiscountType != domain.DiscountFlat:
		return fmt.Errorf("%w: unknown discount type %q", domain.ErrValidation, p.DiscountType)
	case p.DiscountValue <= 0:
		return fmt.Errorf("%w: discount value must be positive", domain.ErrValidation)
	case p.DiscountType == domain.DiscountPercent && p.DiscountValue > 100:
		return fmt.Errorf("%w: percent discount above 100", domain.ErrValidation)
	case p.MinOrderValue < 0:
		return fmt.Errorf("%w: minimum order value must not be negative", domain.ErrValidation)
	}
	return nil
}
