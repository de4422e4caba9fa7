package domain

// JobRepository defines the interface for job persistence
type JobRepository interface {
	// Create creates a new job record
	Create(job *Job) error

	// Update updates an existing job record
	Update(job *Job) error

	// Delete deletes a job record by ID
	Delete(id string) error

	// FindByID finds a job by ID
	FindByID(id string) (*Job, error)

	// FindByStatus finds jobs by status
	FindByStatus(status JobStatus) ([]*Job, error)

	// FindAll finds all jobs, newest first
	FindAll() ([]*Job, error)

	// FindActive finds all non-terminal jobs
	FindActive() ([]*Job, error)

	// GetStats returns job counts by status
	GetStats() (*JobStats, error)
}
