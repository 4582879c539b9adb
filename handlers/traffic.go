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

// TrafficViolationRequest represents a traffic violation report
type TrafficViolationRequest struct {
	VerificationToken string  `json:"verification_token" validate:"required"`
	Phone             string  `json:"phone" validate:"required"`
	Name              string  `json:"name" validate:"required"`
	VehicleNumber     string  `json:"vehicle_number" validate:"required"`
	ViolationType     string  `json:"violation_type" validate:"required"`
	Location          string  `json:"location,omitempty"`
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
	Description       string  `json:"description,omitempty"`
	PhotoID           string  `json:"photo_id,omitempty"`
}

// SubmitTrafficViolation godoc
// @Summary Report a traffic violation
// @Description File a traffic violation report with optional photo evidence
// @Tags Traffic
// @Accept json
// @Produce json
// @Param request body TrafficViolationRequest true "Violation details"
// @Success 201 {object} map[string]interface{} "Report filed"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Phone not verified"
// @Router /traffic-violations [post]
func (h *SubmissionHandler) SubmitTrafficViolation(c *fiber.Ctx) error {
	var req TrafficViolationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Name is required"})
	}
	if !utils.IsValidVehicleNumber(req.VehicleNumber) {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid vehicle registration number"})
	}
	if !services.IsValidViolationType(req.ViolationType) {
		return c.Status(400).JSON(fiber.Map{
			"error":         "Unknown violation type",
			"allowed_types": services.ViolationTypes,
		})
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

	photoPath, err := h.uploads.resolveUpload(req.PhotoID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid photo id"})
	}

	vehicleNumber := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(req.VehicleNumber), " ", ""), "-", ""))

	reference, err := services.GenerateReference(services.ReferencePrefixTraffic, time.Now())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create report reference"})
	}

	enc, err := h.encryptPII(map[string]string{
		"name":  req.Name,
		"phone": phone,
	})
	if err != nil {
		metrics.IncrementError("encrypt_pii", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to protect submission data"})
	}

	var lat, lng *float64
	if req.Latitude != 0 || req.Longitude != 0 {
		lat, lng = &req.Latitude, &req.Longitude
	}

	_, err = h.db.Exec(ctx, `
        INSERT INTO traffic_violations (
            reference, phone_hash, name_encrypted, phone_encrypted, vehicle_number,
            violation_type, location, latitude, longitude, photo_path, description
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		reference, h.crypto.HashPhone(phone), enc["name"], enc["phone"], vehicleNumber,
		req.ViolationType, nullable(req.Location), lat, lng, nullable(photoPath), nullable(req.Description),
	)
	if err != nil {
		metrics.IncrementError("traffic_insert", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to file report"})
	}

	docPath, err := h.docs.RenderTraffic(services.TrafficDocument{
		Reference:     reference,
		Name:          req.Name,
		Phone:         phone,
		VehicleNumber: vehicleNumber,
		ViolationType: req.ViolationType,
		Location:      req.Location,
		Description:   req.Description,
		GeneratedAt:   time.Now(),
	})
	if err != nil {
		log.Printf("⚠️ failed to render violation report for %s: %v", reference, err)
		metrics.IncrementError("document_render", "handlers")
	} else {
		h.db.Exec(ctx, `UPDATE traffic_violations SET document_path = $1 WHERE reference = $2`, docPath, reference)
		metrics.IncrementDocumentRendered("traffic_violation")
	}

	h.hub.PublishSubmissionEvent(websocket.SubmissionEvent{
		Reference:      reference,
		SubmissionType: "traffic_violation",
		Status:         "received",
	})
	metrics.IncrementSubmission("traffic_violation")
	log.Printf("🎯 Traffic violation %s reported against %s", reference, vehicleNumber)

	resp := fiber.Map{
		"reference":      reference,
		"status":         "received",
		"vehicle_number": vehicleNumber,
		"violation_type": req.ViolationType,
	}
	if docPath != "" {
		resp["document_url"] = "/api/v1/documents/" + reference
	}
	return c.Status(201).JSON(resp)
}
