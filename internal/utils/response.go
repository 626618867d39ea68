package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// AdjustSuccessResponse sends a success response for stock mutations
func AdjustSuccessResponse(c *fiber.Ctx, material string, newQuantity int, low bool) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":     "Success",
		"ok":          true,
		"material":    material,
		"newQuantity": newQuantity,
		"low":         low,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
}

// AdjustResponseStruct defines the schema for stock mutation responses
type AdjustResponseStruct struct {
	Message     string `json:"message"`
	Ok          bool   `json:"ok"`
	Material    string `json:"material"`
	NewQuantity int    `json:"newQuantity"`
	Low         bool   `json:"low"`
	Timestamp   string `json:"timestamp"`
}
