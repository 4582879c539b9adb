package handlers

import (
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"civicaid/services"
)

var referenceRe = regexp.MustCompile(`^(CMP|RTI|TRF)-[0-9]{8}-[0-9]{6}$`)

// submissionTables routes a reference prefix to its table and public type name.
var submissionTables = map[string]struct {
	Table string
	Type  string
}{
	services.ReferencePrefixComplaint: {"complaints", "complaint"},
	services.ReferencePrefixRTI:       {"rti_requests", "rti"},
	services.ReferencePrefixTraffic:   {"traffic_violations", "traffic_violation"},
}

// submissionTableForReference validates a reference and returns the table
// holding it plus its submission type.
func submissionTableForReference(reference string) (string, string, bool) {
	if !referenceRe.MatchString(reference) {
		return "", "", false
	}
	entry, ok := submissionTables[strings.SplitN(reference, "-", 2)[0]]
	if !ok {
		return "", "", false
	}
	return entry.Table, entry.Type, true
}

// GetStatus godoc
// @Summary Check submission status
// @Description Look up the current status of a submission by its reference
// @Tags Status
// @Produce json
// @Param reference path string true "Submission reference"
// @Success 200 {object} map[string]interface{} "Submission status"
// @Failure 400 {object} map[string]interface{} "Malformed reference"
// @Failure 404 {object} map[string]interface{} "Unknown reference"
// @Router /status/{reference} [get]
func (h *SubmissionHandler) GetStatus(c *fiber.Ctx) error {
	reference := strings.ToUpper(strings.TrimSpace(c.Params("reference")))
	table, submissionType, ok := submissionTableForReference(reference)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Malformed reference"})
	}

	var status string
	var createdAt, updatedAt time.Time
	// table comes from the fixed routing map above, never from user input
	err := h.db.QueryRow(c.Context(),
		`SELECT status, created_at, updated_at FROM `+table+` WHERE reference = $1`,
		reference,
	).Scan(&status, &createdAt, &updatedAt)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "No submission found for that reference"})
	}

	return c.JSON(fiber.Map{
		"reference":  reference,
		"type":       submissionType,
		"status":     status,
		"created_at": createdAt,
		"updated_at": updatedAt,
	})
}

// DownloadDocument godoc
// @Summary Download a filing document
// @Description Download the rendered document for a submission
// @Tags Status
// @Produce plain
// @Param reference path string true "Submission reference"
// @Success 200 {string} string "Document contents"
// @Failure 404 {object} map[string]interface{} "No document available"
// @Router /documents/{reference} [get]
func (h *SubmissionHandler) DownloadDocument(c *fiber.Ctx) error {
	reference := strings.ToUpper(strings.TrimSpace(c.Params("reference")))
	table, _, ok := submissionTableForReference(reference)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Malformed reference"})
	}

	var docPath *string
	err := h.db.QueryRow(c.Context(),
		`SELECT document_path FROM `+table+` WHERE reference = $1`,
		reference,
	).Scan(&docPath)
	if err != nil || docPath == nil || *docPath == "" {
		return c.Status(404).JSON(fiber.Map{"error": "No document available for that reference"})
	}

	c.Set("Content-Disposition", `attachment; filename="`+reference+`.txt"`)
	return c.SendFile(*docPath)
}
