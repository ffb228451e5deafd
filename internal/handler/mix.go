package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/service"
	"github.com/makeasinger/stemsplit/pkg/response"
)

type MixHandler struct {
	mixer     *service.MixService
	validator *validator.Validate
}

func NewMixHandler(mixer *service.MixService, v *validator.Validate) *MixHandler {
	return &MixHandler{
		mixer:     mixer,
		validator: v,
	}
}

// Mix handles POST /mix/:jobId
// @Summary      Mix stems
// @Description  Re-mix a completed job's stems with per-track gains and export in the upload's container
// @Tags         Jobs
// @Accept       json
// @Produce      octet-stream
// @Param        jobId   path string           true  "Job ID"
// @Param        request body model.MixRequest false "Per-track gains; omitted tracks play at 1.0"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /mix/{jobId} [post]
func (h *MixHandler) Mix(c *fiber.Ctx) error {
	var req model.MixRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.mixer.Mix(c.UserContext(), c.Params("jobId"), req.Volumes)
	if err != nil {
		return writeError(c, err)
	}

	return response.Attachment(c, result.Data, result.Filename, result.ContentType)
}
