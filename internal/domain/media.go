package domain

import (
	"time"

	"github.com/google/uuid"
)

// Media represents a catalog entry created from a completed job
type Media struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	SourceID        string    `json:"source_id" gorm:"uniqueIndex;not null"`
	SourceURL       string    `json:"source_url"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	FilePath        string    `json:"file_path"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName keeps the table singular, "media" is already a plural noun
func (Media) TableName() string {
	return "media"
}

// NewMedia creates a catalog entry for a fetched file
func NewMedia(sourceID, sourceURL, title, filePath string) *Media {
	return &Media{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		SourceURL: sourceURL,
		Title:     title,
		FilePath:  filePath,
		CreatedAt: time.Now(),
	}
}

// Collection represents a destination playlist built from a batch
type Collection struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// CollectionItem links a media record into a collection. Position follows
// the original playlist order, not completion order.
type CollectionItem struct {
	CollectionID string `json:"collection_id" gorm:"primaryKey"`
	MediaID      string `json:"media_id" gorm:"primaryKey"`
	Position     int    `json:"position" gorm:"index"`
}

// MediaCatalog defines the interface to the media store. The orchestrator
// uses it to dedup playlist batches and to register completed downloads.
type MediaCatalog interface {
	// CreateMedia registers a new media record
	CreateMedia(media *Media) error

	// FindMediaBySourceID finds a media record by its external source id.
	// Returns nil without error when no record exists.
	FindMediaBySourceID(sourceID string) (*Media, error)

	// CreateCollection creates an empty destination collection
	CreateCollection(name string) (*Collection, error)

	// AddToCollection inserts a media record at a fixed position
	AddToCollection(collectionID, mediaID string, position int) error

	// ListCollection returns the media of a collection ordered by position
	ListCollection(collectionID string) ([]*Media, error)
}
