package service

import "errors"

var (
	ErrInvalidUpload    = errors.New("invalid upload")
	ErrInvalidGain      = errors.New("invalid gain")
	ErrJobNotFound      = errors.New("job not found")
	ErrTrackNotFound    = errors.New("track not found")
	ErrNotReady         = errors.New("job not completed")
	ErrArchiveDisabled  = errors.New("stem archive not configured")
	ErrUploadNotPending = errors.New("no staged upload for job")
)
