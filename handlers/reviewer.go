package handlers

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"civicaid/crypto"
	"civicaid/database"
	"civicaid/middleware"
	"civicaid/utils"
	"civicaid/websocket"
)

// Submission statuses a reviewer may set. "received" is assigned at intake
// and cannot be reapplied.
var reviewerStatuses = map[string]bool{
	"under_review": true,
	"forwarded":    true,
	"closed":       true,
}

// ReviewerHandler serves the authenticated review queue: listing incoming
// submissions, inspecting one with decrypted contact details, and moving it
// through the status workflow.
type ReviewerHandler struct {
	db     database.Database
	crypto *crypto.CryptoService
	hub    *websocket.Hub
}

// NewReviewerHandler creates a new reviewer handler
func NewReviewerHandler(db database.Database, cryptoService *crypto.CryptoService, hub *websocket.Hub) *ReviewerHandler {
	return &ReviewerHandler{db: db, crypto: cryptoService, hub: hub}
}

type submissionSummary struct {
	Reference string    `json:"reference"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSubmissions godoc
// @Summary List submissions for review
// @Description List submissions of one type, newest first, optionally filtered by status
// @Tags Reviewer
// @Produce json
// @Param type query string false "complaint, rti or traffic_violation (default complaint)"
// @Param status query string false "Filter by status"
// @Param limit query int false "Maximum results (default 50)"
// @Success 200 {object} map[string]interface{} "Submissions"
// @Failure 400 {object} map[string]interface{} "Invalid filter"
// @Router /reviewer/submissions [get]
func (h *ReviewerHandler) ListSubmissions(c *fiber.Ctx) error {
	submissionType := c.Query("type", "complaint")

	var table, subjectColumn string
	switch submissionType {
	case "complaint":
		table, subjectColumn = "complaints", "complaint_type"
	case "rti":
		table, subjectColumn = "rti_requests", "department"
	case "traffic_violation":
		table, subjectColumn = "traffic_violations", "violation_type"
	default:
		return c.Status(400).JSON(fiber.Map{"error": "Unknown submission type"})
	}

	status := c.Query("status")
	if status != "" && status != "received" && !reviewerStatuses[status] {
		return c.Status(400).JSON(fiber.Map{"error": "Unknown status"})
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `SELECT reference, ` + subjectColumn + `, status, created_at, updated_at FROM ` + table
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := h.db.Query(c.Context(), query, args...)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load submissions"})
	}
	defer rows.Close()

	submissions := make([]submissionSummary, 0, limit)
	for rows.Next() {
		s := submissionSummary{Type: submissionType}
		if err := rows.Scan(&s.Reference, &s.Subject, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Failed to load submissions"})
		}
		submissions = append(submissions, s)
	}
	if rows.Err() != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load submissions"})
	}

	return c.JSON(fiber.Map{
		"type":        submissionType,
		"submissions": submissions,
	})
}

// GetSubmission godoc
// @Summary Inspect a submission
// @Description Full submission detail with decrypted citizen contact fields
// @Tags Reviewer
// @Produce json
// @Param reference path string true "Submission reference"
// @Success 200 {object} map[string]interface{} "Submission detail"
// @Failure 404 {object} map[string]interface{} "Unknown reference"
// @Router /reviewer/submissions/{reference} [get]
func (h *ReviewerHandler) GetSubmission(c *fiber.Ctx) error {
	reference := strings.ToUpper(strings.TrimSpace(c.Params("reference")))
	table, submissionType, ok := submissionTableForReference(reference)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Malformed reference"})
	}

	detail := fiber.Map{"reference": reference, "type": submissionType}

	switch table {
	case "complaints":
		var nameEnc, phoneEnc []byte
		var complaintType, incidentLocation, description, status string
		var incidentDate, laws, station, docPath *string
		var createdAt, updatedAt time.Time
		err := h.db.QueryRow(c.Context(), `
            SELECT name_encrypted, phone_encrypted, complaint_type, incident_date,
                   incident_location, description, applicable_laws, police_station,
                   document_path, status, created_at, updated_at
            FROM complaints WHERE reference = $1`, reference).
			Scan(&nameEnc, &phoneEnc, &complaintType, &incidentDate,
				&incidentLocation, &description, &laws, &station,
				&docPath, &status, &createdAt, &updatedAt)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "No submission found for that reference"})
		}
		detail["complaint_type"] = complaintType
		detail["incident_date"] = incidentDate
		detail["incident_location"] = incidentLocation
		detail["description"] = description
		detail["applicable_laws"] = laws
		detail["police_station"] = station
		detail["status"] = status
		detail["created_at"] = createdAt
		detail["updated_at"] = updatedAt
		detail["has_document"] = docPath != nil && *docPath != ""
		h.attachContact(detail, nameEnc, phoneEnc)

	case "rti_requests":
		var nameEnc, phoneEnc []byte
		var department, informationSought, status string
		var purpose, docPath *string
		var createdAt, updatedAt time.Time
		err := h.db.QueryRow(c.Context(), `
            SELECT name_encrypted, phone_encrypted, department, information_sought,
                   purpose, document_path, status, created_at, updated_at
            FROM rti_requests WHERE reference = $1`, reference).
			Scan(&nameEnc, &phoneEnc, &department, &informationSought,
				&purpose, &docPath, &status, &createdAt, &updatedAt)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "No submission found for that reference"})
		}
		detail["department"] = department
		detail["information_sought"] = informationSought
		detail["purpose"] = purpose
		detail["status"] = status
		detail["created_at"] = createdAt
		detail["updated_at"] = updatedAt
		detail["has_document"] = docPath != nil && *docPath != ""
		h.attachContact(detail, nameEnc, phoneEnc)

	case "traffic_violations":
		var nameEnc, phoneEnc []byte
		var vehicleNumber, violationType, status string
		var location, description, photoPath, docPath *string
		var createdAt, updatedAt time.Time
		err := h.db.QueryRow(c.Context(), `
            SELECT name_encrypted, phone_encrypted, vehicle_number, violation_type,
                   location, description, photo_path, document_path, status,
                   created_at, updated_at
            FROM traffic_violations WHERE reference = $1`, reference).
			Scan(&nameEnc, &phoneEnc, &vehicleNumber, &violationType,
				&location, &description, &photoPath, &docPath, &status,
				&createdAt, &updatedAt)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "No submission found for that reference"})
		}
		detail["vehicle_number"] = vehicleNumber
		detail["violation_type"] = violationType
		detail["location"] = location
		detail["description"] = description
		detail["status"] = status
		detail["created_at"] = createdAt
		detail["updated_at"] = updatedAt
		detail["has_photo"] = photoPath != nil && *photoPath != ""
		detail["has_document"] = docPath != nil && *docPath != ""
		h.attachContact(detail, nameEnc, phoneEnc)
	}

	return c.JSON(detail)
}

// attachContact decrypts the citizen's name and phone for the reviewer. The
// phone is masked; reviewers reach citizens through the official desk, not
// directly.
func (h *ReviewerHandler) attachContact(detail fiber.Map, nameEnc, phoneEnc []byte) {
	if name, err := h.crypto.DecryptField(nameEnc, "name"); err == nil {
		detail["name"] = string(name)
	} else {
		log.Printf("⚠️ failed to decrypt submission name: %v", err)
	}
	if phone, err := h.crypto.DecryptField(phoneEnc, "phone"); err == nil {
		detail["phone"] = utils.MaskPhone(string(phone))
	} else {
		log.Printf("⚠️ failed to decrypt submission phone: %v", err)
	}
}

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus godoc
// @Summary Update submission status
// @Description Move a submission through the review workflow
// @Tags Reviewer
// @Accept json
// @Produce json
// @Param reference path string true "Submission reference"
// @Param request body statusUpdateRequest true "New status"
// @Success 200 {object} map[string]interface{} "Status updated"
// @Failure 400 {object} map[string]interface{} "Invalid status"
// @Failure 404 {object} map[string]interface{} "Unknown reference"
// @Router /reviewer/submissions/{reference}/status [patch]
func (h *ReviewerHandler) UpdateStatus(c *fiber.Ctx) error {
	reference := strings.ToUpper(strings.TrimSpace(c.Params("reference")))
	table, submissionType, ok := submissionTableForReference(reference)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Malformed reference"})
	}

	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if !reviewerStatuses[req.Status] {
		return c.Status(400).JSON(fiber.Map{"error": "Status must be under_review, forwarded or closed"})
	}

	tag, err := h.db.Exec(c.Context(),
		`UPDATE `+table+` SET status = $1, updated_at = NOW() WHERE reference = $2`,
		req.Status, reference,
	)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to update status"})
	}
	if tag.RowsAffected() == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "No submission found for that reference"})
	}

	h.hub.PublishSubmissionEvent(websocket.SubmissionEvent{
		Reference:      reference,
		SubmissionType: submissionType,
		Status:         req.Status,
	})

	if uid, err := middleware.GetUserIDFromToken(c); err == nil {
		log.Printf("✅ Reviewer %s moved %s to %s", uid, reference, req.Status)
	}

	return c.JSON(fiber.Map{
		"reference": reference,
		"status":    req.Status,
	})
}
