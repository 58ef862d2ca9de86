package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sheetsight/api/internal/service"
	"github.com/sheetsight/api/internal/store"
	"github.com/sheetsight/api/pkg/response"
)

type JobsHandler struct {
	service *service.UploadService
}

func NewJobsHandler(svc *service.UploadService) *JobsHandler {
	return &JobsHandler{service: svc}
}

// Status handles GET /api/jobs/:jobId. A non-terminal state is a normal
// answer; the poller is expected to come back later.
func (h *JobsHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	userID := c.Query("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	status, err := h.service.Status(c.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, status)
}
