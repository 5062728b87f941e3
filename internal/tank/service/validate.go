package service

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// deliveryDateLayouts are tried in order.
var deliveryDateLayouts = []string{"2006-01-02", time.RFC3339}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("notblank", validators.NotBlank)
		_ = validate.RegisterValidation("capacity", validateCapacity)
		_ = validate.RegisterValidation("delivery_date", validateDeliveryDate)

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Capacity is stored as numeric(12,3).
const capacityScale = 3

var maxCapacity = decimal.New(1, 9)

func validateCapacity(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil || !d.IsPositive() || !d.LessThan(maxCapacity) {
		return false
	}
	return d.Equal(d.Truncate(capacityScale))
}

func validateDeliveryDate(fl validator.FieldLevel) bool {
	_, err := parseDeliveryDate(fl.Field().String())
	return err == nil
}

func parseDeliveryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range deliveryDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// validateStruct runs the struct tags and folds failures into one ValidationError.
func validateStruct(v interface{}) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Field()+" "+formatValidationError(e))
	}
	return apperror.Validation("%s", strings.Join(msgs, "; "))
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "capacity":
		return "must be a positive number below 1000000000 with at most 3 decimals"
	case "delivery_date":
		return "must be a date (YYYY-MM-DD)"
	default:
		return "is invalid"
	}
}
