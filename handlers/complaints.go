package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"civicaid/crypto"
	"civicaid/database"
	"civicaid/metrics"
	"civicaid/services"
	"civicaid/utils"
	"civicaid/websocket"
)

// SubmissionHandler handles citizen-facing submissions: police complaints,
// RTI applications and traffic violation reports. Every submission requires
// a verification token from the OTP flow; PII is encrypted before storage
// and a filing document is rendered for the citizen to download.
type SubmissionHandler struct {
	db       database.Database
	crypto   *crypto.CryptoService
	otp      *services.OTPService
	stations *services.StationService
	docs     *services.DocumentService
	uploads  *UploadHandler
	hub      *websocket.Hub
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(
	db database.Database,
	cryptoService *crypto.CryptoService,
	otpService *services.OTPService,
	stationService *services.StationService,
	documentService *services.DocumentService,
	uploadHandler *UploadHandler,
	hub *websocket.Hub,
) *SubmissionHandler {
	return &SubmissionHandler{
		db:       db,
		crypto:   cryptoService,
		otp:      otpService,
		stations: stationService,
		docs:     documentService,
		uploads:  uploadHandler,
		hub:      hub,
	}
}

// ComplaintRequest represents a police complaint submission
type ComplaintRequest struct {
	VerificationToken string  `json:"verification_token" validate:"required"`
	Phone             string  `json:"phone" validate:"required"`
	Name              string  `json:"name" validate:"required"`
	FatherName        string  `json:"father_name,omitempty"`
	Age               int     `json:"age,omitempty"`
	Email             string  `json:"email,omitempty"`
	Address           string  `json:"address,omitempty"`
	AadhaarNumber     string  `json:"aadhaar_number,omitempty"`
	AadhaarPhotoID    string  `json:"aadhaar_photo_id,omitempty"`
	ComplaintType     string  `json:"complaint_type,omitempty"`
	IncidentDate      string  `json:"incident_date,omitempty"`
	IncidentLocation  string  `json:"incident_location" validate:"required"`
	Description       string  `json:"description" validate:"required"`
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
}

// SubmitComplaint godoc
// @Summary Submit a police complaint
// @Description File a complaint after phone verification; returns a reference and a rendered filing document
// @Tags Complaints
// @Accept json
// @Produce json
// @Param request body ComplaintRequest true "Complaint details"
// @Success 201 {object} map[string]interface{} "Complaint filed"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Phone not verified"
// @Router /complaints [post]
func (h *SubmissionHandler) SubmitComplaint(c *fiber.Ctx) error {
	var req ComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.IncidentLocation) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Name, description and incident location are required"})
	}
	if req.AadhaarNumber != "" && !utils.IsValidAadhaar(req.AadhaarNumber) {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid Aadhaar number"})
	}
	if req.Email != "" && !utils.IsValidEmail(req.Email) {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid email address"})
	}
	if req.Age < 0 || req.Age > 120 {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid age"})
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

	aadhaarPhotoPath, err := h.uploads.resolveUpload(req.AadhaarPhotoID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid Aadhaar photo id"})
	}

	complaintType := strings.TrimSpace(req.ComplaintType)
	if complaintType == "" {
		complaintType = services.ClassifyComplaint(req.Description)
	}
	laws := services.ApplicableLaws(complaintType)

	policeStation := h.nearestStationName(c, req.Latitude, req.Longitude)

	reference, err := services.GenerateReference(services.ReferencePrefixComplaint, time.Now())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create complaint reference"})
	}

	enc, err := h.encryptPII(map[string]string{
		"name":        req.Name,
		"father_name": req.FatherName,
		"phone":       phone,
		"email":       req.Email,
		"address":     req.Address,
		"aadhaar":     req.AadhaarNumber,
	})
	if err != nil {
		metrics.IncrementError("encrypt_pii", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to protect submission data"})
	}

	var age *int
	if req.Age > 0 {
		age = &req.Age
	}

	_, err = h.db.Exec(ctx, `
        INSERT INTO complaints (
            reference, phone_hash, name_encrypted, father_name_encrypted, age,
            phone_encrypted, email_encrypted, address_encrypted, aadhaar_encrypted,
            aadhaar_photo_path, complaint_type, incident_date, incident_location,
            description, applicable_laws, police_station
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		reference, h.crypto.HashPhone(phone), enc["name"], enc["father_name"], age,
		enc["phone"], enc["email"], enc["address"], enc["aadhaar"],
		nullable(aadhaarPhotoPath), complaintType, nullable(req.IncidentDate), req.IncidentLocation,
		req.Description, laws, nullable(policeStation),
	)
	if err != nil {
		metrics.IncrementError("complaint_insert", "handlers")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to file complaint"})
	}

	docPath, err := h.docs.RenderComplaint(services.ComplaintDocument{
		Reference:        reference,
		Name:             req.Name,
		FatherName:       req.FatherName,
		Age:              req.Age,
		Phone:            phone,
		Email:            req.Email,
		Address:          req.Address,
		ComplaintType:    complaintType,
		IncidentDate:     req.IncidentDate,
		IncidentLocation: req.IncidentLocation,
		Description:      req.Description,
		ApplicableLaws:   laws,
		PoliceStation:    policeStation,
		GeneratedAt:      time.Now(),
	})
	if err != nil {
		log.Printf("⚠️ failed to render complaint document for %s: %v", reference, err)
		metrics.IncrementError("document_render", "handlers")
	} else {
		h.db.Exec(ctx, `UPDATE complaints SET document_path = $1 WHERE reference = $2`, docPath, reference)
		metrics.IncrementDocumentRendered("complaint")
	}

	h.hub.PublishSubmissionEvent(websocket.SubmissionEvent{
		Reference:      reference,
		SubmissionType: "complaint",
		Status:         "received",
	})
	metrics.IncrementSubmission("complaint")
	log.Printf("🎯 Complaint %s filed (%s) for %s", reference, complaintType, utils.MaskPhone(phone))

	resp := fiber.Map{
		"reference":       reference,
		"status":          "received",
		"complaint_type":  complaintType,
		"applicable_laws": laws,
	}
	if policeStation != "" {
		resp["police_station"] = policeStation
	}
	if docPath != "" {
		resp["document_url"] = "/api/v1/documents/" + reference
	}
	return c.Status(201).JSON(resp)
}

// nearestStationName resolves the closest seeded police station when the
// citizen shared coordinates. Lookup failures are non-fatal; a complaint
// without a station still reaches the review queue.
func (h *SubmissionHandler) nearestStationName(c *fiber.Ctx, lat, lng float64) string {
	if lat == 0 && lng == 0 {
		return ""
	}
	nearest, err := h.stations.Nearest(c.Context(), lat, lng, 1)
	if err != nil || len(nearest) == 0 {
		if err != nil {
			log.Printf("⚠️ nearest station lookup failed: %v", err)
		}
		return ""
	}
	return nearest[0].Name
}

// encryptPII encrypts each non-empty value under a per-field key. Empty
// values map to nil so optional columns stay NULL.
func (h *SubmissionHandler) encryptPII(fields map[string]string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(fields))
	for fieldType, value := range fields {
		if value == "" {
			out[fieldType] = nil
			continue
		}
		enc, err := h.crypto.EncryptField([]byte(value), fieldType)
		if err != nil {
			return nil, err
		}
		out[fieldType] = enc
	}
	return out, nil
}

// nullable turns an empty string into a NULL column value.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
