package invoice

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

// FieldError describes a single violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every violation found in a payload.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match httpx.ErrValidation.
func (e ValidationErrors) Unwrap() error {
	return httpx.ErrValidation
}

// Map keys the first message of each field, for form rendering.
func (e ValidationErrors) Map() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// AsValidation extracts ValidationErrors from err.
func AsValidation(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	mustRegister(v, "decimal_gte", decimalGTE)
	mustRegister(v, "calendar_date", calendarDate)
	mustRegister(v, "invoice_status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(dueNotBeforeInvoice, Input{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("invoice: register %s: %v", tag, err))
	}
}

func decimalGTE(fl validator.FieldLevel) bool {
	value, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	min, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}
	return value.GreaterThanOrEqual(min)
}

func calendarDate(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}

func dueNotBeforeInvoice(sl validator.StructLevel) {
	in, ok := sl.Current().Interface().(Input)
	if !ok {
		return
	}
	invoiceDate, err := ParseDate(in.InvoiceDate)
	if err != nil {
		return
	}
	dueDate, err := ParseDate(in.DueDate)
	if err != nil {
		return
	}
	if dueDate.Before(invoiceDate) {
		sl.ReportError(in.DueDate, "dueDate", "DueDate", "due_not_before_invoice", "")
	}
}

// Validate checks a candidate payload and reports every violation at once.
// Text fields are trimmed first, so whitespace alone does not satisfy a
// required field.
func Validate(in Input) error {
	err := validate.Struct(in.normalize())
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{Field: fieldPath(fe.Namespace()), Message: message(fe)})
	}
	return out
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least one item"
	case "email":
		return "must be a valid email address"
	case "calendar_date":
		return "must be a valid date (YYYY-MM-DD)"
	case "decimal_gte":
		return "must be at least " + fe.Param()
	case "invoice_status":
		return "must be one of " + statusList()
	case "due_not_before_invoice":
		return "must be on or after the invoice date"
	default:
		return "is invalid"
	}
}

func statusList() string {
	names := make([]string, 0, len(statusOrder))
	for _, s := range statusOrder {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func statusError(value Status) ValidationErrors {
	return ValidationErrors{{Field: "status", Message: fmt.Sprintf("%q must be one of %s", string(value), statusList())}}
}

// FieldDetails exposes the violations to the HTTP problem encoder.
func (e ValidationErrors) FieldDetails() []httpx.FieldDetail {
	out := make([]httpx.FieldDetail, 0, len(e))
	for _, fe := range e {
		out = append(out, httpx.FieldDetail(fe))
	}
	return out
}
