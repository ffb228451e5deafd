package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/stemsplit/internal/service"
	"github.com/makeasinger/stemsplit/internal/worker"
	"github.com/makeasinger/stemsplit/pkg/response"
)

// writeError maps service errors onto the response envelope.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidUpload), errors.Is(err, service.ErrInvalidGain):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrTrackNotFound):
		return response.NotFound(c, "Track not found")
	case errors.Is(err, service.ErrNotReady):
		return response.JobNotReady(c, "Processing not completed")
	case errors.Is(err, service.ErrArchiveDisabled):
		return response.ServiceUnavailable(c, "Stem sharing is not configured")
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrClosed):
		return response.ServiceUnavailable(c, "Too many jobs in progress, try again later")
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Namespace()] = e.Tag()
		}
		return fields
	}
	return nil
}
