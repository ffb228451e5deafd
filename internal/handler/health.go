package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/stemsplit/internal/service"
	"github.com/makeasinger/stemsplit/pkg/response"
)

type HealthHandler struct {
	health *service.HealthService
}

func NewHealthHandler(health *service.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Liveness, separation model state and dependency status
// @Tags         System
// @Produce      json
// @Success      200 {object} model.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, h.health.Report(c.UserContext()))
}
