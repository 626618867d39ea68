package handlers

import (
	"errors"
	"strings"

	"github.com/fited/stocktrack/internal/models"
	"github.com/fited/stocktrack/internal/types"
	"github.com/fited/stocktrack/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// validate is shared across handlers; the validator is concurrency-safe
// and caches struct metadata.
var validate = validator.New()

// materialParam parses the :material path parameter
func materialParam(c *fiber.Ctx) (models.MaterialType, error) {
	raw := strings.ToUpper(strings.TrimSpace(c.Params("material")))
	return models.ParseMaterial(raw)
}

// attributedUser pulls the authenticated user email set by the auth
// middleware
func attributedUser(c *fiber.Ctx) string {
	if email, ok := c.Locals("userEmail").(string); ok {
		return email
	}
	return ""
}

// sendError maps a service error onto the JSON error envelope. Typed
// CustomErrors carry their own status; anything else is a 500.
func sendError(c *fiber.Ctx, err error, fallbackType string) error {
	var custom *types.CustomError
	if errors.As(err, &custom) {
		return utils.ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}
	return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, fallbackType)
}

// validationMessage flattens validator errors into one line
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fe.Field()+" failed "+fe.Tag())
		}
		return strings.Join(parts, ", ")
	}
	return err.Error()
}
