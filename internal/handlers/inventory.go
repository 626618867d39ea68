package handlers

import (
	"github.com/fited/stocktrack/internal/models"
	"github.com/fited/stocktrack/internal/services"
	"github.com/fited/stocktrack/internal/types"
	"github.com/fited/stocktrack/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// StockHandler handles the inventory routes
type StockHandler struct {
	Service  *services.StockService
	Settings *services.SettingsService
}

type addStockRequest struct {
	Amount types.FlexInt `json:"amount"`
	Note   string        `json:"note" validate:"max=512"`
}

type subtractStockRequest struct {
	Amount types.FlexInt `json:"amount"`
	Reason string        `json:"reason" validate:"required"`
	Note   string        `json:"note" validate:"max=512"`
}

// stockView is one snapshot row plus the low-stock flag derived from
// the local threshold
type stockView struct {
	Material  models.MaterialType `json:"material"`
	Quantity  int                 `json:"quantity"`
	Threshold int                 `json:"threshold"`
	Low       bool                `json:"low"`
}

// GetStock handles GET /api/stock
// @Summary Inventory snapshot
// @Description Returns all five materials with quantities and low-stock flags; ?low=true filters to low-stock materials only
// @Tags Stock
// @Produce json
// @Param low query bool false "Only materials at or below threshold"
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stock [get]
func (h *StockHandler) GetStock(c *fiber.Ctx) error {
	snapshot, err := h.Service.Refresh()
	if err != nil {
		return sendError(c, err, "stock.refresh")
	}

	lowOnly := c.QueryBool("low", false)

	rows := make([]stockView, 0, len(snapshot.Stock))
	for _, r := range snapshot.Stock {
		threshold := h.Settings.Threshold(r.Material)
		low := r.Quantity <= threshold
		if lowOnly && !low {
			continue
		}
		rows = append(rows, stockView{
			Material:  r.Material,
			Quantity:  r.Quantity,
			Threshold: threshold,
			Low:       low,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":             true,
		"stock":          rows,
		"total_quantity": snapshot.TotalQuantity,
	})
}

// GetLog handles GET /api/stock/log
// @Summary Adjustment log
// @Description Returns log entries newest first, capped at 200; ?material=PLA filters to one material
// @Tags Stock
// @Produce json
// @Param limit query int false "Max entries"
// @Param material query string false "Material filter"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 502 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stock/log [get]
func (h *StockHandler) GetLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	var material models.MaterialType
	if raw := c.Query("material"); raw != "" {
		m, err := models.ParseMaterial(raw)
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "stock.validation.material")
		}
		material = m
	}

	entries, err := h.Service.Log(limit, material)
	if err != nil {
		return sendError(c, err, "stock.log")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":  true,
		"log": entries,
	})
}

// AddStock handles POST /api/stock/:material/add
// @Summary Add stock
// @Description Increases a material's quantity and appends an audit entry with reason stock-in
// @Tags Stock
// @Accept json
// @Produce json
// @Param material path string true "Material (PP, TPU, PLA, ABS, PETG)"
// @Param body body addStockRequest true "Amount and optional note"
// @Success 200 {object} utils.AdjustResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 502 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stock/{material}/add [post]
func (h *StockHandler) AddStock(c *fiber.Ctx) error {
	material, err := materialParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "stock.validation.material")
	}

	var body addStockRequest
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "stock.validation.input")
	}
	if err := validate.Struct(&body); err != nil {
		return utils.ErrorResponse(c, validationMessage(err), fiber.StatusBadRequest, "stock.validation.input")
	}

	newQuantity, err := h.Service.Add(material, body.Amount.Int(), body.Note, attributedUser(c))
	if err != nil {
		return sendError(c, err, "stock.add")
	}

	low := newQuantity <= h.Settings.Threshold(material)
	return utils.AdjustSuccessResponse(c, material.String(), newQuantity, low)
}

// SubtractStock handles POST /api/stock/:material/subtract
// @Summary Subtract stock
// @Description Decreases a material's quantity, clamped at zero; the audit entry records the requested amount
// @Tags Stock
// @Accept json
// @Produce json
// @Param material path string true "Material (PP, TPU, PLA, ABS, PETG)"
// @Param body body subtractStockRequest true "Amount, reason and optional note"
// @Success 200 {object} utils.AdjustResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 502 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stock/{material}/subtract [post]
func (h *StockHandler) SubtractStock(c *fiber.Ctx) error {
	material, err := materialParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "stock.validation.material")
	}

	var body subtractStockRequest
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "stock.validation.input")
	}
	if err := validate.Struct(&body); err != nil {
		return utils.ErrorResponse(c, validationMessage(err), fiber.StatusBadRequest, "stock.validation.input")
	}

	reason, err := models.ParseReason(body.Reason)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "stock.validation.reason")
	}

	newQuantity, err := h.Service.Subtract(material, body.Amount.Int(), reason, body.Note, attributedUser(c))
	if err != nil {
		return sendError(c, err, "stock.subtract")
	}

	low := newQuantity <= h.Settings.Threshold(material)
	return utils.AdjustSuccessResponse(c, material.String(), newQuantity, low)
}
