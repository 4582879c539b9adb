package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"civicaid/metrics"
	"civicaid/services"
	"civicaid/utils"
	"civicaid/websocket"
)

// RTIRequest represents an RTI application submission
type RTIRequest struct {
	VerificationToken string `json:"verification_token" validate:"required"`
	Phone             string `json:"phone" validate:"required"`
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email,omitempty"`
	Address           string `json:"address,omitempty"`
	AadhaarNumber     string `json:"aadhaar_number,omitempty"`
	Department        string `json:"department" validate:"required"`
	InformationSought string `json:"information_sought" validate:"required"`
	Purpose           string `json:"purpose,omitempty"`
}

// SubmitRTI godoc
// @Summary Submit an RTI application
// @Description File an application under the Right to Information Act, 2005
// @Tags RTI
// @Accept json
// @Produce json
// @Param request body RTIRequest true "Application details"
// @Success 201 {object} map[string]interface{} "Application filed"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Phone not verified"
// @Router /rti [post]
func (h *SubmissionHandler) SubmitRTI(c *fiber.Ctx) error {
	var req RTIRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Department) == "" || strings.TrimSpace(req.InformationSought) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Name, department and information sought are required"})
	}
	if req.AadhaarNumber != "" && !utils.IsValidAadhaar(req.AadhaarNumber) {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid Aadhaar number"})
	}
	if req.Email != "" && !utils.IsValidEmail(req.Email) {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid email address"})
	}

	ctx := c.Context()
	phone := utils.NormalizePhone(req.Phone)

	if err := h.otp.Consume(ctx, req.VerificationToken, phone); err != nil {
		if errors.Is(err, services.ErrPhoneNotVerified) {
			return c.Status(401).JSON(fiber.Map{"error": "Phone not verified, complete OTP verification first"})
		}
		metrics.IncrementError("verification_consume", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Verification check failed"})
	}

	reference, err := services.GenerateReference(services.ReferencePrefixRTI, time.Now())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create application reference"})
	}

	enc, err := h.encryptPII(map[string]string{
		"name":    req.Name,
		"phone":   phone,
		"email":   req.Email,
		"address": req.Address,
		"aadhaar": req.AadhaarNumber,
	})
	if err != nil {
		metrics.IncrementError("encrypt_pii", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to protect submission data"})
	}

	_, err = h.db.Exec(ctx, `
        INSERT INTO rti_requests (
            reference, phone_hash, name_encrypted, phone_encrypted, email_encrypted,
            address_encrypted, aadhaar_encrypted, department, information_sought, purpose
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		reference, h.crypto.HashPhone(phone), enc["name"], enc["phone"], enc["email"],
		enc["address"], enc["aadhaar"], req.Department, req.InformationSought, nullable(req.Purpose),
	)
	if err != nil {
		metrics.IncrementError("rti_insert", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to file application"})
	}

	docPath, err := h.docs.RenderRTI(services.RTIDocument{
		Reference:         reference,
		Name:              req.Name,
		Phone:             phone,
		Email:             req.Email,
		Address:           req.Address,
		Department:        req.Department,
		InformationSought: req.InformationSought,
		Purpose:           req.Purpose,
		GeneratedAt:       time.Now(),
	})
	if err != nil {
		log.Printf("⚠️ failed to render RTI document for %s: %v", reference, err)
		metrics.IncrementError("document_render", "handlers")
	} else {
		h.db.Exec(ctx, `UPDATE rti_requests SET document_path = $1 WHERE reference = $2`, docPath, reference)
		metrics.IncrementDocumentRendered("rti")
	}

	h.hub.PublishSubmissionEvent(websocket.SubmissionEvent{
		Reference:      reference,
		SubmissionType: "rti",
		Status:         "received",
	})
	metrics.IncrementSubmission("rti")
	log.Printf("🎯 RTI application %s filed for %s", reference, utils.MaskPhone(phone))

	resp := fiber.Map{
		"reference":  reference,
		"status":     "received",
		"department": req.Department,
	}
	if docPath != "" {
		resp["document_url"] = "/api/v1/documents/" + reference
	}
	return c.Status(201).JSON(resp)
}
