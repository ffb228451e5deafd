package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/stemsplit/internal/config"
	"github.com/makeasinger/stemsplit/internal/middleware"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Upload *UploadHandler
	Job    *JobHandler
	Mix    *MixHandler
	Health *HealthHandler
}

// Register mounts the HTTP surface on app.
func Register(app *fiber.App, h Handlers, limiter *middleware.RateLimiter, limits config.RateLimitConfig) {
	app.Get("/health", h.Health.Health)

	app.Post("/upload", limiter.UploadLimit(limits.UploadPerHour), h.Upload.Upload)
	app.Get("/status/:jobId", h.Job.Status)
	app.Get("/download/:jobId/:track", h.Job.Download)
	app.Post("/mix/:jobId", limiter.MixLimit(limits.MixPerMin), h.Mix.Mix)
	app.Delete("/clear/:jobId", h.Job.Clear)
	app.Get("/share/:jobId/:track", h.Job.Share)

	// WebSocket routes
	app.Get("/ws/jobs/:jobId", h.Job.Upgrade, h.Job.Socket())
}
