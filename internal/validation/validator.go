package validation

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var cardExpiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

// New returns a configured validator. Field errors are reported under their json names and
// decimal.Decimal fields accept the numeric tags (gte, gt, ...).
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("card_expiry", func(fl validatorv10.FieldLevel) bool {
		return cardExpiryPattern.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(orderMoneyStructValidation, CreateOrderRequest{}, UpdateOrderRequest{})

	return v
}

// orderMoneyStructValidation rejects amounts finer than cents, which the store cannot keep
func orderMoneyStructValidation(sl validatorv10.StructLevel) {
	var total *decimal.Decimal
	var items []OrderItemRequest

	switch req := sl.Current().Interface().(type) {
	case CreateOrderRequest:
		total, items = req.Total, req.Items
	case UpdateOrderRequest:
		total = req.Total
		if req.Items != nil {
			items = *req.Items
		}
	}

	if total != nil && !isCents(*total) {
		sl.ReportError(*total, "total", "Total", "cents", "")
	}
	for i, item := range items {
		if item.Price != nil && !isCents(*item.Price) {
			sl.ReportError(*item.Price, "items["+strconv.Itoa(i)+"].price", "Price", "cents", "")
		}
	}
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
