package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	validatorv10 "github.com/go-playground/validator/v10"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validatorv10.Validate
}

func NewValidator() *Validator {
	v := validatorv10.New()
	v.RegisterStructValidation(createPromoStructValidation, CreatePromoRequest{})
	v.RegisterStructValidation(updatePromoStructValidation, UpdatePromoRequest{})
	return &Validator{v: v}
}

// Validate returns an error wrapping domain.ErrValidation that names every failed field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validatorv10.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(fields, ", "))
}

func createPromoStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreatePromoRequest)
	if req.DiscountType == string(domain.DiscountPercent) && req.DiscountValue > 100 {
		sl.ReportError(req.DiscountValue, "discountValue", "DiscountValue", "percent_max", "")
	}
}

func updatePromoStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdatePromoRequest)
	if req.DiscountType != nil && *req.DiscountType == string(domain.DiscountPercent) &&
		req.DiscountValue != nil && *req.DiscountValue > 100 {
		sl.ReportError(*req.DiscountValue, "discountValue", "DiscountValue", "percent_max", "")
	}
}
