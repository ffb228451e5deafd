package model

import "time"

// UploadStatusAccepted is the status reported by a successful upload.
const UploadStatusAccepted = "uploaded"

// UploadResponse represents the response when an upload is accepted
type UploadResponse struct {
	JobID    string `json:"jobId"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// StatusResponse is the client view of a job: stem names, never stem bytes.
type StatusResponse struct {
	JobID           string     `json:"jobId"`
	Filename        string     `json:"filename"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	CurrentStep     string     `json:"currentStep,omitempty"`
	Error           *string    `json:"error"`
	TracksAvailable []string   `json:"tracksAvailable"`
	SampleRate      int        `json:"sampleRate,omitempty"`
	Analysis        *Analysis  `json:"analysis,omitempty"`
	HasVideo        bool       `json:"hasVideo"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// NewStatusResponse builds the status view from a job snapshot.
func NewStatusResponse(j *Job) StatusResponse {
	tracks := []string{}
	if j.Status == JobStatusCompleted {
		tracks = j.TrackNames()
	}
	return StatusResponse{
		JobID:           j.ID,
		Filename:        j.OriginalFilename,
		Status:          j.Status,
		Progress:        j.Progress,
		CurrentStep:     j.CurrentStep,
		Error:           j.Error,
		TracksAvailable: tracks,
		SampleRate:      j.SampleRate,
		Analysis:        j.Analysis,
		HasVideo:        j.Video != nil,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

// MixRequest carries per-track gains. Tracks left out play at unity gain.
type MixRequest struct {
	Volumes map[string]float64 `json:"volumes" validate:"omitempty,dive,keys,required,endkeys,gte=0,lte=4"`
}

// MixResult is an exported mix ready to be served.
type MixResult struct {
	Data        []byte
	Filename    string
	Format      Format
	ContentType string
}

// ClearResponse represents the response after a job is deleted
type ClearResponse struct {
	Message string `json:"message"`
}

// ShareResponse carries a link to an archived stem. ExpiresAt is omitted for
// permanent public links.
type ShareResponse struct {
	URL       string     `json:"url"`
	Track     string     `json:"track"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HealthResponse represents service health
type HealthResponse struct {
	Status      string            `json:"status"`
	Device      string            `json:"device"`
	ModelLoaded bool              `json:"modelLoaded"`
	Model       string            `json:"model,omitempty"`
	SampleRate  int               `json:"sampleRate,omitempty"`
	Services    map[string]string `json:"services"`
}
