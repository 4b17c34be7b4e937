package validator

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/osteo-api/pkg/errors"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	ValidateField(field string, value interface{}, rules ...string) error
}

type enum interface {
	Valid() bool
}

type regionChecker interface {
	UnknownRegions() []string
}

type structValidator struct {
	validate *validator.Validate
}

// New returns a validator reading `validate` tags. Field names in errors are
// the json names. Besides the built-in rules it knows:
//
//	enum     the value's Valid() method must return true
//	anatomy  the map must not hold keys outside the anatomical checklist
func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

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

	mustRegister(v, "enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(enum)
		return ok && e.Valid()
	})
	mustRegister(v, "anatomy", func(fl validator.FieldLevel) bool {
		rc, ok := fl.Field().Interface().(regionChecker)
		return ok && len(rc.UnknownRegions()) == 0
	})

	return &structValidator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validate checks every tagged field of obj and reports all failures at once.
func (v *structValidator) Validate(obj interface{}) error {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewBadRequest("invalid input", err)
	}
	return errors.NewValidation(entityName(obj), FormatValidationErrors(verrs))
}

func (v *structValidator) ValidateField(field string, value interface{}, rules ...string) error {
	err := v.validate.Var(value, strings.Join(rules, ","))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewBadRequest("invalid input", err)
	}
	fields := make([]errors.FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, errors.FieldError{Field: field, Message: message(field, e)})
	}
	return errors.NewValidation(field, fields)
}

// FormatValidationErrors turns validator failures into field errors.
func FormatValidationErrors(verrs validator.ValidationErrors) []errors.FieldError {
	fields := make([]errors.FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, errors.FieldError{Field: e.Field(), Message: message(e.Field(), e)})
	}
	return fields
}

func message(field string, e validator.FieldError) string {
	var msg string
	switch e.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = field + " must be a valid email address"
	case "min":
		msg = field + " must be at least " + e.Param() + " characters"
	case "max":
		msg = field + " must be at most " + e.Param() + " characters"
	case "gte":
		msg = field + " must be greater than or equal to " + e.Param()
	case "oneof":
		msg = field + " must be one of " + e.Param()
	case "enum":
		msg = field + " is not a known value"
	case "anatomy":
		msg = field + " contains unknown regions"
	default:
		msg = field + " is invalid"
	}
	return msg
}

func entityName(obj interface{}) string {
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
