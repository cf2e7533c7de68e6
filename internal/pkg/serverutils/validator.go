package serverutils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest runs the struct's `validate` tags and reports the first
// failures as a 400.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var msgs []string
	if ves, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ves {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
		}
	} else {
		msgs = append(msgs, err.Error())
	}
	return fiber.NewError(fiber.StatusBadRequest, strings.Join(msgs, "; "))
}
