package handlers

import (
	"github.com/fited/stocktrack/internal/models"
	"github.com/fited/stocktrack/internal/services"
	"github.com/fited/stocktrack/internal/types"
	"github.com/fited/stocktrack/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// SettingsHandler handles the local threshold settings routes
type SettingsHandler struct {
	Settings *services.SettingsService
}

// GetThresholds handles GET /api/settings/thresholds
// @Summary Low-stock thresholds
// @Description Returns the per-material low-stock thresholds (default 20)
// @Tags Settings
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security CookieAuth
// @Router /settings/thresholds [get]
func (h *SettingsHandler) GetThresholds(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":         true,
		"thresholds": h.Settings.Thresholds(),
	})
}

// SetThresholds handles POST /api/settings/thresholds
// @Summary Update low-stock thresholds
// @Description Overwrites thresholds for the given materials; omitted materials keep their value
// @Tags Settings
// @Accept json
// @Produce json
// @Param body body map[string]int true "Material to threshold map"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /settings/thresholds [post]
func (h *SettingsHandler) SetThresholds(c *fiber.Ctx) error {
	var body map[string]types.FlexInt
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "settings.validation.input")
	}
	if len(body) == 0 {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "settings.validation.input")
	}

	updates := make(map[models.MaterialType]int, len(body))
	for raw, v := range body {
		m, err := models.ParseMaterial(raw)
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "settings.validation.material")
		}
		updates[m] = v.Int()
	}

	if err := h.Settings.SetThresholds(updates); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "settings.set")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":         true,
		"thresholds": h.Settings.Thresholds(),
	})
}
