package model

import (
	"sort"
	"time"
)

// TempResource is an owned temporary file. Release is idempotent and only the
// first call removes the file.
type TempResource interface {
	Path() string
	Valid() bool
	Release() error
}

// Job is the record of one upload and its separation.
type Job struct {
	ID                string    `json:"id"`
	OriginalFilename  string    `json:"originalFilename"`
	OriginalExtension Format    `json:"originalExtension"`
	Status            JobStatus `json:"status"`
	Progress          int       `json:"progress"`
	CurrentStep       string    `json:"currentStep,omitempty"`
	Error             *string   `json:"error,omitempty"`

	// Stems and SampleRate are set together with JobStatusCompleted.
	// Stem bytes are never modified once stored.
	Stems      map[string][]byte `json:"-"`
	SampleRate int               `json:"sampleRate,omitempty"`
	Analysis   *Analysis         `json:"analysis,omitempty"`

	// Video is the retained upload for video containers, released on delete.
	Video TempResource `json:"-"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Snapshot returns a copy safe to read while the original keeps changing.
// The stems map is copied; the byte slices it points to are shared.
func (j *Job) Snapshot() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Stems != nil {
		cp.Stems = make(map[string][]byte, len(j.Stems))
		for k, v := range j.Stems {
			cp.Stems[k] = v
		}
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Analysis != nil {
		a := *j.Analysis
		cp.Analysis = &a
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// TrackNames returns the stored stem names, sorted.
func (j *Job) TrackNames() []string {
	names := make([]string, 0, len(j.Stems))
	for name := range j.Stems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrorMessage returns the failure message or "".
func (j *Job) ErrorMessage() string {
	if j.Error == nil {
		return ""
	}
	return *j.Error
}
