package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"civicaid/metrics"
	"civicaid/services"
	"civicaid/utils"
)

// OTPHandler handles phone verification requests
type OTPHandler struct {
	otp *services.OTPService
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(otpService *services.OTPService) *OTPHandler {
	return &OTPHandler{otp: otpService}
}

type otpRequestBody struct {
	Phone string `json:"phone" validate:"required"`
}

type otpVerifyBody struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// RequestOTP godoc
// @Summary Request a verification code
// @Description Send a one-time code to the given phone number
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body otpRequestBody true "Phone number"
// @Success 200 {object} map[string]interface{} "Code sent"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 429 {object} map[string]interface{} "Resend cooldown active"
// @Router /otp/request [post]
func (h *OTPHandler) RequestOTP(c *fiber.Ctx) error {
	var req otpRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if req.Phone == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone number is required"})
	}

	phone, err := h.otp.RequestCode(c.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, services.ErrOTPCooldown) {
			metrics.IncrementOTPOperation("request", "cooldown")
			return c.Status(429).JSON(fiber.Map{"error": "Please wait before requesting another code"})
		}
		metrics.IncrementOTPOperation("request", "error")
		metrics.IncrementError("otp_request", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to send verification code"})
	}

	metrics.IncrementOTPOperation("request", "success")
	return c.JSON(fiber.Map{
		"message": "Verification code sent",
		"phone":   utils.MaskPhone(phone),
	})
}

// VerifyOTP godoc
// @Summary Verify a one-time code
// @Description Exchange a valid code for a single-use verification token
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body otpVerifyBody true "Phone and code"
// @Success 200 {object} map[string]interface{} "Verification token"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Code does not match"
// @Failure 410 {object} map[string]interface{} "Code expired"
// @Failure 429 {object} map[string]interface{} "Attempts exhausted"
// @Router /otp/verify [post]
func (h *OTPHandler) VerifyOTP(c *fiber.Ctx) error {
	var req otpVerifyBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if req.Phone == "" || req.Code == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Phone number and code are required"})
	}

	token, err := h.otp.VerifyCode(c.Context(), req.Phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOTPExpired):
			metrics.IncrementOTPOperation("verify", "expired")
			return c.Status(410).JSON(fiber.Map{"error": "Verification code expired, request a new one"})
		case errors.Is(err, services.ErrOTPMaxAttempts):
			metrics.IncrementOTPOperation("verify", "max_attempts")
			return c.Status(429).JSON(fiber.Map{"error": "Too many incorrect attempts, request a new code"})
		case errors.Is(err, services.ErrOTPMismatch):
			metrics.IncrementOTPOperation("verify", "mismatch")
			return c.Status(401).JSON(fiber.Map{"error": "Incorrect verification code"})
		}
		metrics.IncrementOTPOperation("verify", "error")
		metrics.IncrementError("otp_verify", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Verification failed"})
	}

	metrics.IncrementOTPOperation("verify", "success")
	return c.JSON(fiber.Map{
		"message":            "Phone verified",
		"verification_token": token,
	})
}
