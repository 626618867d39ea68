package handlers

import (
	"time"

	"github.com/fited/stocktrack/internal/services"
	"github.com/fited/stocktrack/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles the OTP login routes
type AuthHandler struct {
	Sessions *services.SessionManager
}

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric"`
}

// SendCode handles POST /api/auth/code
// @Summary Request a one-time passcode
// @Description Emails a one-time passcode to the given address
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body sendCodeRequest true "Email address"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/code [post]
func (h *AuthHandler) SendCode(c *fiber.Ctx) error {
	var body sendCodeRequest
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "auth.validation.input")
	}
	if err := validate.Struct(&body); err != nil {
		return utils.ErrorResponse(c, validationMessage(err), fiber.StatusBadRequest, "auth.validation.input")
	}

	if err := h.Sessions.SendCode(c.UserContext(), body.Email); err != nil {
		return sendError(c, err, "auth.sendCode")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"ok":      true,
		"message": "Code sent",
		"state":   h.Sessions.State(),
	})
}

// VerifyCode handles POST /api/auth/verify
// @Summary Verify a one-time passcode
// @Description Verifies the emailed passcode and establishes a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body verifyCodeRequest true "Email and passcode"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/verify [post]
func (h *AuthHandler) VerifyCode(c *fiber.Ctx) error {
	var body verifyCodeRequest
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "auth.validation.input")
	}
	if err := validate.Struct(&body); err != nil {
		return utils.ErrorResponse(c, validationMessage(err), fiber.StatusBadRequest, "auth.validation.input")
	}

	if err := h.Sessions.VerifyCode(c.UserContext(), body.Email, body.Code); err != nil {
		return sendError(c, err, "auth.verifyCode")
	}

	session := h.Sessions.Current()

	// Hand the provider session back as the cookie the auth middleware
	// validates on subsequent requests
	c.Cookie(&fiber.Cookie{
		Name:     "cookie_session",
		Value:    session.AccessToken,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":    true,
		"state": h.Sessions.State(),
		"email": session.Email,
	})
}

// GetSession handles GET /api/auth/session
// @Summary Current session state
// @Description Restores the session from the session cookie; an absent or expired token resolves to signed_out, never an error
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/session [get]
func (h *AuthHandler) GetSession(c *fiber.Ctx) error {
	h.Sessions.RestoreSession(c.UserContext(), c.Cookies("cookie_session"))

	resp := fiber.Map{
		"ok":    true,
		"state": h.Sessions.State(),
	}
	if email := h.Sessions.UserEmail(); email != "" {
		resp["email"] = email
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// SignOut handles POST /api/auth/signout
// @Summary Sign out
// @Description Revokes the remote session best-effort and always clears local state
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	h.Sessions.SignOut(c.UserContext())

	c.Cookie(&fiber.Cookie{
		Name:    "cookie_session",
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":    true,
		"state": h.Sessions.State(),
	})
}
