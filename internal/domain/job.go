package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a download job
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusProcessing  JobStatus = "processing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// legalTransitions lists the allowed status moves. Anything not listed here
// is rejected by CanTransition. Pending -> Failed covers runners that die
// before the first progress report (e.g. the metadata probe fails).
var legalTransitions = map[JobStatus][]JobStatus{
	StatusPending:     {StatusDownloading, StatusFailed, StatusCancelled},
	StatusDownloading: {StatusDownloading, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing:  {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:      {StatusPending},
	StatusCancelled:   {StatusPending},
	StatusCompleted:   {},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job represents one requested fetch-and-import operation
type Job struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	SourceURL       string    `json:"source_url" gorm:"not null"`
	SourceID        string    `json:"source_id,omitempty" gorm:"index"`
	Title           string    `json:"title,omitempty"`
	Status          JobStatus `json:"status" gorm:"not null;index"`
	ProgressPercent int       `json:"progress_percent"`
	Speed           string    `json:"speed,omitempty"`
	ETA             string    `json:"eta,omitempty"`
	ErrorMessage    string    `json:"error,omitempty"`
	Retryable       bool      `json:"retryable,omitempty"`
	MediaID         string    `json:"media_id,omitempty" gorm:"index"`
	BatchID         string    `json:"batch_id,omitempty" gorm:"index"`
	CollectionID    string    `json:"collection_id,omitempty"`
	PlaylistIndex   int       `json:"playlist_index,omitempty"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewJob creates a new pending job for a source URL
func NewJob(sourceURL string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		SourceURL: sourceURL,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the job to a new status, rejecting illegal moves.
func (j *Job) Transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("illegal transition %s -> %s for job %s", j.Status, to, j.ID)
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	return nil
}

// MarkDownloading marks the job as downloading and records the title
// reported by the runner.
func (j *Job) MarkDownloading(title string) error {
	if err := j.Transition(StatusDownloading); err != nil {
		return err
	}
	if title != "" {
		j.Title = title
	}
	return nil
}

// UpdateProgress applies a progress tick. Percent is clamped to 0-100 and
// never moves backwards within a single attempt.
func (j *Job) UpdateProgress(percent int, speed, eta string) {
	if percent > 100 {
		percent = 100
	}
	if percent > j.ProgressPercent {
		j.ProgressPercent = percent
	}
	j.Speed = speed
	j.ETA = eta
	j.UpdatedAt = time.Now()
}

// MarkProcessing marks the raw transfer as done with post-processing still running
func (j *Job) MarkProcessing() error {
	return j.Transition(StatusProcessing)
}

// MarkCompleted marks the job as completed and binds the catalog entry.
func (j *Job) MarkCompleted(mediaID string) error {
	if err := j.Transition(StatusCompleted); err != nil {
		return err
	}
	j.MediaID = mediaID
	j.ProgressPercent = 100
	j.Speed = ""
	j.ETA = ""
	j.ErrorMessage = ""
	return nil
}

// MarkFailed marks the job as failed with a human-readable cause
func (j *Job) MarkFailed(cause error, retryable bool) error {
	if err := j.Transition(StatusFailed); err != nil {
		return err
	}
	j.ErrorMessage = cause.Error()
	j.Retryable = retryable
	j.Speed = ""
	j.ETA = ""
	return nil
}

// MarkCancelled marks the job as cancelled by user request
func (j *Job) MarkCancelled() error {
	if err := j.Transition(StatusCancelled); err != nil {
		return err
	}
	j.Speed = ""
	j.ETA = ""
	return nil
}

// ResetForRetry starts a fresh attempt under the same job id. Only failed
// and cancelled jobs can be retried; a completed job cannot be retried in place.
func (j *Job) ResetForRetry() error {
	if err := j.Transition(StatusPending); err != nil {
		return err
	}
	j.ProgressPercent = 0
	j.ErrorMessage = ""
	j.Retryable = false
	j.Speed = ""
	j.ETA = ""
	return nil
}

// IsTerminal checks if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled
}

// IsActive checks if the job currently occupies or awaits a runner
func (j *Job) IsActive() bool {
	return !j.IsTerminal()
}

// ValidateInvariants checks the record-level consistency rules: a media id
// exists exactly when the job completed, an error exactly when it failed.
func (j *Job) ValidateInvariants() error {
	if (j.MediaID != "") != (j.Status == StatusCompleted) {
		return fmt.Errorf("job %s: media_id presence inconsistent with status %s", j.ID, j.Status)
	}
	if (j.ErrorMessage != "") != (j.Status == StatusFailed) {
		return fmt.Errorf("job %s: error presence inconsistent with status %s", j.ID, j.Status)
	}
	return nil
}

// JobStats represents job counts by status
type JobStats struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	Downloading int64 `json:"downloading"`
	Processing  int64 `json:"processing"`
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`
	Cancelled   int64 `json:"cancelled"`
}
