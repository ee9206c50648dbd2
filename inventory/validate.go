/*
validate.go - Input validation for inventory commands

PURPOSE:
  Field limits for every command accepted by the Service. String, enum,
  id and list-size rules are declared as validator struct tags; decimal
  ranges are checked by hand because the validator has no decimal type.

LIMITS:
  Names 1..100, units 1..20, bill numbers 1..50, remarks-style text per
  field. Quantities 0..999999.99, money 0..9999999.99. A purchase or
  issue carries 1..100 lines and lists each item at most once.

SEE ALSO:
  - errors.go: ValidationError
  - service.go: Calls validateStruct before touching the store
*/
package inventory

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// MaxQuantity is the largest quantity or stock figure accepted.
	MaxQuantity = decimal.RequireFromString("999999.99")
	// MaxRate is the largest per-unit rate or MRP accepted.
	MaxRate = decimal.RequireFromString("999999.99")
	// MaxAmount is the largest money figure accepted.
	MaxAmount = decimal.RequireFromString("9999999.99")
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the tag rules on v and appends problems to verr.
func validateStruct(verr *ValidationError, v any) {
	err := validatorInstance().Struct(v)
	if err == nil {
		return
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add("input", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), tagMessage(fe))
	}
}

// fieldPath drops the top-level struct name: "RecordPurchaseCommand.lines[0].item_id" -> "lines[0].item_id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func tagMessage(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if isList {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if isList {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "uuid":
		return "must be a valid UUID"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// checkRange records a problem when d is outside [lo, hi].
func checkRange(verr *ValidationError, field string, d, lo, hi decimal.Decimal) {
	if d.LessThan(lo) {
		verr.Add(field, "must be at least "+lo.String())
		return
	}
	if d.GreaterThan(hi) {
		verr.Add(field, "must be at most "+hi.String())
	}
}

// checkPositive records a problem when d is not in (0, hi].
func checkPositive(verr *ValidationError, field string, d, hi decimal.Decimal) {
	if !d.IsPositive() {
		verr.Add(field, "must be greater than 0")
		return
	}
	if d.GreaterThan(hi) {
		verr.Add(field, "must be at most "+hi.String())
	}
}

// checkDiscount validates a discount against the gross line value.
func checkDiscount(verr *ValidationError, field string, d Discount, gross decimal.Decimal) {
	switch d.Type {
	case DiscountNone:
		if !d.Value.IsZero() {
			verr.Add(field+".type", "is required when a discount value is given")
		}
	case DiscountPercentage:
		checkRange(verr, field+".value", d.Value, decimal.Zero, hundred)
	case DiscountAmount:
		checkRange(verr, field+".value", d.Value, decimal.Zero, gross)
	default:
		verr.Add(field+".type", "must be one of: percentage amount")
	}
}

func trim(s string) string { return strings.TrimSpace(s) }
