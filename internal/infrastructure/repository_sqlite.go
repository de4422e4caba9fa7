package infrastructure

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// SQLiteRepository implements JobRepository and MediaCatalog using SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate the job store and the media catalog schema
	if err := db.AutoMigrate(
		&domain.Job{},
		&domain.Media{},
		&domain.Collection{},
		&domain.CollectionItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Create creates a new job record
func (r *SQLiteRepository) Create(job *domain.Job) error {
	return r.db.Create(job).Error
}

// Update updates an existing job record
func (r *SQLiteRepository) Update(job *domain.Job) error {
	return r.db.Save(job).Error
}

// Delete deletes a job record by ID
func (r *SQLiteRepository) Delete(id string) error {
	return r.db.Delete(&domain.Job{}, "id = ?", id).Error
}

// FindByID finds a job by ID. Returns nil without error when not found.
func (r *SQLiteRepository) FindByID(id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.First(&job, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// FindByStatus finds jobs by status
func (r *SQLiteRepository) FindByStatus(status domain.JobStatus) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Where("status = ?", status).Order("created_at ASC").Find(&jobs).Error
	return jobs, err
}

// FindAll finds all jobs, newest first
func (r *SQLiteRepository) FindAll() ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// FindActive finds all non-terminal jobs
func (r *SQLiteRepository) FindActive() ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Where("status IN ?", []domain.JobStatus{
		domain.StatusPending,
		domain.StatusDownloading,
		domain.StatusProcessing,
	}).Order("created_at ASC").Find(&jobs).Error
	return jobs, err
}

// GetStats returns job counts by status
func (r *SQLiteRepository) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{}

	if err := r.db.Model(&domain.Job{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.JobStatus
		Count  int64
	}{}
	if err := r.db.Model(&domain.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusPending:
			stats.Pending = sc.Count
		case domain.StatusDownloading:
			stats.Downloading = sc.Count
		case domain.StatusProcessing:
			stats.Processing = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// MediaCatalog implementation
// ============================================================================

// CreateMedia registers a new media record
func (r *SQLiteRepository) CreateMedia(media *domain.Media) error {
	return r.db.Create(media).Error
}

// FindMediaBySourceID finds a media record by its external source id.
// Returns nil without error when no record exists.
func (r *SQLiteRepository) FindMediaBySourceID(sourceID string) (*domain.Media, error) {
	var media domain.Media
	err := r.db.Where("source_id = ?", sourceID).First(&media).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &media, nil
}

// CreateCollection creates an empty destination collection
func (r *SQLiteRepository) CreateCollection(name string) (*domain.Collection, error) {
	collection := &domain.Collection{
		ID:   uuid.New().String(),
		Name: name,
	}
	if err := r.db.Create(collection).Error; err != nil {
		return nil, err
	}
	return collection, nil
}

// AddToCollection inserts a media record at a fixed position. Re-adding the
// same media to the same collection is a no-op.
func (r *SQLiteRepository) AddToCollection(collectionID, mediaID string, position int) error {
	item := &domain.CollectionItem{
		CollectionID: collectionID,
		MediaID:      mediaID,
		Position:     position,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(item).Error
}

// ListCollection returns the media of a collection ordered by position
func (r *SQLiteRepository) ListCollection(collectionID string) ([]*domain.Media, error) {
	var media []*domain.Media
	err := r.db.
		Joins("JOIN collection_items ON collection_items.media_id = media.id").
		Where("collection_items.collection_id = ?", collectionID).
		Order("collection_items.position ASC").
		Find(&media).Error
	return media, err
}
