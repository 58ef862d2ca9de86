package handler

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sheetsight/api/internal/config"
	"github.com/sheetsight/api/internal/service"
	"github.com/sheetsight/api/pkg/response"
)

// defaultUserID stands in when the caller does not identify itself; the
// owner id is a namespace, not an authenticated identity.
const defaultUserID = "default_user"

type UploadHandler struct {
	service *service.UploadService
	cfg     config.UploadConfig
}

func NewUploadHandler(svc *service.UploadService, cfg config.UploadConfig) *UploadHandler {
	return &UploadHandler{
		service: svc,
		cfg:     cfg,
	}
}

// Upload handles POST /api/upload. The default mode enqueues a background
// job and returns the job id; ?mode=sync (or server-wide sync config)
// extracts inline and returns the columns directly.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "No file part in the request.", nil)
	}
	if file.Filename == "" {
		return response.ValidationError(c, "No selected file.", nil)
	}

	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".csv" {
		return response.ValidationError(c, "Invalid file type. Please upload a CSV file.", map[string]interface{}{
			"filename": file.Filename,
		})
	}

	if h.cfg.MaxBytes > 0 && file.Size > int64(h.cfg.MaxBytes) {
		return response.ValidationError(c, "File too large.", map[string]interface{}{
			"maxBytes": h.cfg.MaxBytes,
			"fileSize": file.Size,
		})
	}

	userID := c.FormValue("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	if h.cfg.Sync || c.Query("mode") == "sync" {
		return h.uploadSync(c, userID, data)
	}

	job, err := h.service.Enqueue(c.Context(), userID, data)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, fiber.Map{
		"user_id": userID,
		"job_id":  job.ID,
		"message": "File uploaded successfully. Processing is underway in the background.",
	})
}

func (h *UploadHandler) uploadSync(c *fiber.Ctx, userID string, data []byte) error {
	columns, err := h.service.ExtractSync(c.Context(), userID, data)
	if err != nil {
		return response.ValidationError(c, extractErrorMessage(err), nil)
	}

	return response.OK(c, fiber.Map{
		"user_id": userID,
		"columns": columns,
	})
}

func extractErrorMessage(err error) string {
	return "Error reading the file: " + err.Error()
}
