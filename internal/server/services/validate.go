package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	passwordMinLen = 8
	passwordMaxLen = 26
	// bcrypt input limit.
	passwordMaxBytes = 72
)

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
	_ = v.RegisterValidation("complexpassword", func(fl validator.FieldLevel) bool {
		return isComplexPassword(fl.Field().String())
	})
	return v
}

// isComplexPassword requires 8-26 characters with at least one lowercase
// letter, one uppercase letter, one digit and one symbol, and at most
// passwordMaxBytes bytes.
func isComplexPassword(p string) bool {
	if len(p) > passwordMaxBytes {
		return false
	}
	n := len([]rune(p))
	if n < passwordMinLen || n > passwordMaxLen {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// validateStruct runs the struct tags and reports the first failure as a
// *common.ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	fe := verrs[0]
	return common.NewValidationError(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "uuid":
		return fmt.Sprintf("%q must be a valid id", field)
	case "complexpassword":
		return fmt.Sprintf("%q must be %d-%d characters and contain a lowercase letter, an uppercase letter, a number and a symbol",
			field, passwordMinLen, passwordMaxLen)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

// isID reports whether id has the shape of a stored primary key.
func isID(id string) bool {
	return uuid.Validate(id) == nil
}

// requireID maps a malformed id to common.ErrNotFound, since no row can have it.
func requireID(kind, id string) error {
	if !isID(id) {
		return fmt.Errorf("%s not found: %w", kind, common.ErrNotFound)
	}
	return nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
