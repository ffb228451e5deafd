package handler

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/service"
	ws "github.com/makeasinger/stemsplit/internal/websocket"
	"github.com/makeasinger/stemsplit/pkg/response"
)

// ClearedMessage is the reply to a successful clear.
const ClearedMessage = "Job cleared"

type JobHandler struct {
	jobs *service.JobManager
	hub  *ws.Hub
}

func NewJobHandler(jobs *service.JobManager, hub *ws.Hub) *JobHandler {
	return &JobHandler{
		jobs: jobs,
		hub:  hub,
	}
}

// Status handles GET /status/:jobId
// @Summary      Get job status
// @Description  Get the state, progress and available tracks of a job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.StatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /status/{jobId} [get]
func (h *JobHandler) Status(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, model.NewStatusResponse(job))
}

// Download handles GET /download/:jobId/:track
// @Summary      Download a stem
// @Description  Download one separated track as 16-bit PCM WAV
// @Tags         Jobs
// @Produce      audio/wav
// @Param        jobId path string true "Job ID"
// @Param        track path string true "Track name"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /download/{jobId}/{track} [get]
func (h *JobHandler) Download(c *fiber.Ctx) error {
	track := c.Params("track")
	data, err := h.jobs.Stem(c.UserContext(), c.Params("jobId"), track)
	if err != nil {
		return writeError(c, err)
	}
	return response.Attachment(c, data, track+"."+string(model.FormatWAV), model.FormatWAV.ContentType())
}

// Clear handles DELETE /clear/:jobId
// @Summary      Clear a job
// @Description  Remove a job record and release its retained resources
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ClearResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /clear/{jobId} [delete]
func (h *JobHandler) Clear(c *fiber.Ctx) error {
	// The id outlives the request in the deleted event.
	jobID := utils.CopyString(c.Params("jobId"))
	if err := h.jobs.Delete(c.UserContext(), jobID); err != nil {
		return writeError(c, err)
	}
	return response.OK(c, model.ClearResponse{Message: ClearedMessage})
}

// Share handles GET /share/:jobId/:track
// @Summary      Share a stem
// @Description  Get a time-limited download link for an archived stem
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Param        track path string true "Track name"
// @Success      200 {object} model.ShareResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /share/{jobId}/{track} [get]
func (h *JobHandler) Share(c *fiber.Ctx) error {
	track := c.Params("track")
	url, expires, err := h.jobs.Share(c.UserContext(), c.Params("jobId"), track)
	if err != nil {
		return writeError(c, err)
	}
	resp := model.ShareResponse{URL: url, Track: track}
	if !expires.IsZero() {
		resp.ExpiresAt = &expires
	}
	return response.OK(c, resp)
}

// Upgrade rejects non-WebSocket requests and unknown jobs before the
// protocol switch.
func (h *JobHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.jobs.Get(c.UserContext(), c.Params("jobId")); err != nil {
		return writeError(c, err)
	}
	return c.Next()
}

// Socket handles GET /ws/jobs/:jobId, pushing job events as they happen. The
// current state is sent first.
func (h *JobHandler) Socket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		jobID := conn.Params("jobId")
		var initial interface{}
		if job, err := h.jobs.Get(context.Background(), jobID); err == nil {
			initial = CurrentState(job)
		}
		h.hub.HandleConnection(conn, jobID, initial)
	})
}

// CurrentState is the event a new subscriber receives for a job.
func CurrentState(job *model.Job) interface{} {
	switch job.Status {
	case model.JobStatusCompleted:
		return model.WSCompleteMessage{
			Type:   model.WSMessageTypeComplete,
			JobID:  job.ID,
			Result: model.NewStatusResponse(job),
		}
	case model.JobStatusFailed:
		return model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: job.ID,
			Error: model.WSError{Code: service.CodeProcessingFailed, Message: job.ErrorMessage()},
		}
	default:
		return model.WSProgressMessage{
			Type:        model.WSMessageTypeProgress,
			JobID:       job.ID,
			Progress:    job.Progress,
			Status:      job.Status,
			CurrentStep: job.CurrentStep,
		}
	}
}
