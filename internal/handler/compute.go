package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/sheetsight/api/internal/compute"
	"github.com/sheetsight/api/internal/model"
	"github.com/sheetsight/api/internal/service"
	"github.com/sheetsight/api/pkg/response"
)

type ComputeHandler struct {
	service   *service.ComputeService
	validator *validator.Validate
}

func NewComputeHandler(svc *service.ComputeService, v *validator.Validate) *ComputeHandler {
	return &ComputeHandler{
		service:   svc,
		validator: v,
	}
}

// Compute handles POST /api/compute.
func (h *ComputeHandler) Compute(c *fiber.Ctx) error {
	var req model.ComputeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid JSON payload.", nil)
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Missing required data.", formatValidationErrors(err))
	}

	rec, err := h.service.Compute(c.Context(), req.UserID, req.Column, req.Operation)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoData):
			return response.ValidationError(c, "No data uploaded for this user.", nil)
		case errors.Is(err, service.ErrNoSuchColumn):
			return response.ValidationError(c, "Column not found in uploaded data.", nil)
		case errors.Is(err, compute.ErrUnknownOperation):
			return response.ValidationError(c, "Unsupported operation.", map[string]interface{}{
				"operation": req.Operation,
			})
		case errors.Is(err, compute.ErrNoValues):
			return response.ValidationError(c, "The column has no values.", nil)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, model.ComputeResponse{
		GeneratedQuery: rec.Query,
		Result:         rec.Result,
		Status:         rec.Status,
	})
}

// History handles GET /api/compute/history.
func (h *ComputeHandler) History(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	records, err := h.service.History(c.Context(), userID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.HistoryResponse{
		UserID:  userID,
		Records: records,
	})
}
