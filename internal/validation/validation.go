// Package validation checks user input before it reaches the stores. Error
// messages are meant to be shown to the user unchanged.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalid matches every error returned by Struct.
var ErrInvalid = errors.New("invalid input")

// FieldError is a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the list of failed rules for one form.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) Is(target error) bool {
	return target == ErrInvalid
}

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// decimal.Decimal is a struct; compare it as a number so gte/gt work
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("inn", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return digitsRe.MatchString(s) && (len(s) == 10 || len(s) == 12)
	})
	return v
}

var labels = map[string]string{
	"company_name":     "Company name",
	"inn":              "INN",
	"director_name":    "Director name",
	"email":            "Email",
	"phone":            "Phone",
	"contact_phone":    "Contact phone",
	"partner_type_id":  "Partner type",
	"username":         "Username",
	"password":         "Password",
	"confirm_password": "Password confirmation",
	"name":             "Product name",
	"product_type_id":  "Product type",
	"price":            "Price",
	"role":             "Role",
	"partner_id":       "Partner",
}

func label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

type normalizer interface {
	normalize()
}

// Struct trims the form's text fields and checks its validate tags. The
// returned error is Errors (matching ErrInvalid) or nil.
func Struct(form any) error {
	if n, ok := form.(normalizer); ok {
		n.normalize()
	}

	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	name := label(fe.Field())
	isText := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", name, fe.Param())
	case "min":
		if isText {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if isText {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be less than %s", name, fe.Param())
	case "email":
		return name + " must be a valid email address"
	case "digits":
		return name + " must contain digits only"
	case "inn":
		return name + " must be 10 or 12 digits"
	case "eqfield":
		return "Passwords do not match"
	}
	return name + " is invalid"
}
