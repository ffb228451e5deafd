package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/service"
	"github.com/makeasinger/stemsplit/pkg/response"
)

type UploadHandler struct {
	jobs *service.JobManager
}

func NewUploadHandler(jobs *service.JobManager) *UploadHandler {
	return &UploadHandler{jobs: jobs}
}

// Upload handles POST /upload
// @Summary      Upload media for separation
// @Description  Queue an audio or video file for stem separation. Returns immediately.
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Media file (wav, mp3, flac, m4a, ogg, mp4)"
// @Success      200 {object} model.UploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /upload [post]
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "No file provided", nil)
	}
	if file.Filename == "" {
		return response.ValidationError(c, "No file selected", nil)
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

	job, err := h.jobs.Submit(c.UserContext(), file.Filename, data)
	if err != nil {
		return writeError(c, err)
	}

	return response.OK(c, model.UploadResponse{
		JobID:    job.ID,
		Filename: job.OriginalFilename,
		Status:   model.UploadStatusAccepted,
	})
}
