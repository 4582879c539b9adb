package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"civicaid/config"
)

const uploadsSubdir = "uploads"

// Upload IDs are server-generated, so anything else in a submission is
// either a typo or a traversal attempt.
var uploadIDRe = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}\.(jpg|jpeg|png)$`)

var allowedPhotoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// UploadHandler stores photos attached to submissions: Aadhaar card photos
// for complaints and evidence photos for traffic violation reports.
type UploadHandler struct {
	storageDir string
	maxBytes   int
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(cfg *config.Config) *UploadHandler {
	return &UploadHandler{
		storageDir: cfg.StorageDir,
		maxBytes:   cfg.MaxUploadBytes,
	}
}

// UploadPhoto godoc
// @Summary Upload a photo
// @Description Store a photo and return an upload id to reference in a submission
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "JPEG or PNG photo"
// @Success 201 {object} map[string]interface{} "Upload id"
// @Failure 400 {object} map[string]interface{} "Invalid upload"
// @Failure 413 {object} map[string]interface{} "File too large"
// @Router /uploads [post]
func (h *UploadHandler) UploadPhoto(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "A photo file is required"})
	}

	if h.maxBytes > 0 && fileHeader.Size > int64(h.maxBytes) {
		return c.Status(413).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large, maximum is %d bytes", h.maxBytes),
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedPhotoExts[ext] {
		return c.Status(400).JSON(fiber.Map{"error": "Only JPEG and PNG photos are accepted"})
	}

	uploadDir := filepath.Join(h.storageDir, uploadsSubdir)
	if err := os.MkdirAll(uploadDir, 0o750); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to store photo"})
	}

	uploadID := uuid.New().String() + ext
	if err := c.SaveFile(fileHeader, filepath.Join(uploadDir, uploadID)); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to store photo"})
	}

	return c.Status(201).JSON(fiber.Map{"upload_id": uploadID})
}

// resolveUpload maps an upload id from a submission back to its stored path.
// Returns an empty path for an empty id; errors on unknown or malformed ids.
func (h *UploadHandler) resolveUpload(uploadID string) (string, error) {
	if uploadID == "" {
		return "", nil
	}
	if !uploadIDRe.MatchString(uploadID) {
		return "", fmt.Errorf("malformed upload id")
	}
	path := filepath.Join(h.storageDir, uploadsSubdir, uploadID)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("unknown upload id")
	}
	return path, nil
}
