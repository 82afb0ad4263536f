package grading

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
)

var (
	periodTag  = "period"
	periodText = "unknown period"

	// scores are stored as NUMERIC(4, 2)
	hundredthsTag  = "hundredths"
	hundredthsText = "at most 2 decimals are allowed"
)

// InitValidators registers the grading validations; core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	// validate the wrapped value of optional scores, a missing score is empty
	validate.RegisterCustomTypeFunc(nullFloatValue, null.Float64{})

	_ = validate.RegisterValidation(periodTag, periodValidation)
	core.RegisterCustomTranslation(validate, translator, periodTag, periodText)

	_ = validate.RegisterValidation(hundredthsTag, hundredthsValidation)
	core.RegisterCustomTranslation(validate, translator, hundredthsTag, hundredthsText)
}

func nullFloatValue(field reflect.Value) interface{} {
	if f, ok := field.Interface().(null.Float64); ok && f.Valid {
		return f.Float64
	}
	return nil
}

// periodValidation checks that the field is one of Periods.
func periodValidation(fl validator.FieldLevel) bool {
	return Period(fl.Field().String()).Valid()
}

func hundredthsValidation(fl validator.FieldLevel) bool {
	d := decimal.NewFromFloat(fl.Field().Float())
	return d.Equal(d.Round(2))
}
