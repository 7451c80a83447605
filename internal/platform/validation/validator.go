package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// bizKeyPattern restricts verification business keys to cache-key-safe tokens.
var bizKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

type defaultValidator struct{ v *validator.Validate }

func (d *defaultValidator) Validate(i interface{}) error {
	return d.v.Struct(i)
}

// New returns an echo.Validator with the courier-specific tags registered:
//   - biz_key: a verification business key (letters, digits, "_", ".", "-")
func New() echo.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("biz_key", func(fl validator.FieldLevel) bool {
		return bizKeyPattern.MatchString(fl.Field().String())
	})
	return &defaultValidator{v: v}
}
