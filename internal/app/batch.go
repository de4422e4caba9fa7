package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// BatchOptions configures a playlist batch start
type BatchOptions struct {
	// SelectedIDs restricts the batch to a subset of the playlist's entry
	// ids. Nil means all entries. Ids outside the playlist are rejected.
	SelectedIDs []string

	// CreateCollection creates a destination collection populated in
	// original playlist order as jobs complete
	CreateCollection bool

	// CollectionName overrides the collection name (defaults to the
	// playlist title)
	CollectionName string
}

// BatchResult summarizes a batch start. The contained jobs are independently
// trackable and not necessarily complete.
type BatchResult struct {
	BatchID             string        `json:"batch_id"`
	PlaylistTitle       string        `json:"playlist_title"`
	TotalConsidered     int           `json:"total_considered"`
	Skipped             int           `json:"skipped"`
	Jobs                []*domain.Job `json:"jobs"`
	CreatedCollectionID string        `json:"created_collection_id,omitempty"`
}

// StartBatch expands a playlist, dedups the selected entries against the
// catalog and starts one independently cancellable job per remaining entry.
// Expansion errors abort the whole call before any job record is created.
func (o *Orchestrator) StartBatch(ctx context.Context, playlistURL string, opts BatchOptions) (*BatchResult, error) {
	if err := ValidateSourceURL(playlistURL); err != nil {
		return nil, err
	}

	preview, err := o.resolver.ResolvePlaylist(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to expand playlist: %w", err)
	}

	selection := domain.NewPlaylistSelection(preview)
	if opts.SelectedIDs != nil {
		selection, err = selection.WithSelected(opts.SelectedIDs)
		if err != nil {
			return nil, err
		}
	}

	entries := selectedEntries(preview, selection)
	result := &BatchResult{
		BatchID:         uuid.New().String(),
		PlaylistTitle:   preview.Title,
		TotalConsidered: len(entries),
		Jobs:            make([]*domain.Job, 0, len(entries)),
	}

	var collectionID string
	if opts.CreateCollection {
		name := opts.CollectionName
		if name == "" {
			name = preview.Title
		}
		collection, err := o.catalog.CreateCollection(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create collection: %w", err)
		}
		collectionID = collection.ID
		result.CreatedCollectionID = collectionID
	}

	for index, entry := range entries {
		existing, err := o.catalog.FindMediaBySourceID(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup failed for %s: %w", entry.ID, err)
		}
		if existing != nil {
			result.Skipped++
			if collectionID != "" {
				// already-owned entries keep their playlist position
				if err := o.catalog.AddToCollection(collectionID, existing.ID, index); err != nil {
					o.logger.Error("Failed to add existing media to collection",
						zap.String("media_id", existing.ID),
						zap.Error(err))
				}
			}
			continue
		}

		job := domain.NewJob(entry.URL)
		job.SourceID = entry.ID
		job.Title = entry.Title
		job.BatchID = result.BatchID
		job.CollectionID = collectionID
		job.PlaylistIndex = index
		if err := o.repo.Create(job); err != nil {
			return nil, fmt.Errorf("failed to create job for %s: %w", entry.ID, err)
		}

		o.launch(job)

		snapshot := *job
		result.Jobs = append(result.Jobs, &snapshot)
	}

	o.logger.Info("Batch started",
		zap.String("batch_id", result.BatchID),
		zap.String("playlist", preview.Title),
		zap.Int("considered", result.TotalConsidered),
		zap.Int("skipped", result.Skipped),
		zap.Int("jobs", len(result.Jobs)))

	return result, nil
}

// selectedEntries returns the selected entries in original playlist order
func selectedEntries(preview *domain.PlaylistPreview, selection domain.PlaylistSelection) []*domain.PlaylistEntry {
	entries := make([]*domain.PlaylistEntry, 0, len(preview.Entries))
	for _, entry := range preview.Entries {
		if selection.Selected[entry.ID] {
			entries = append(entries, entry)
		}
	}
	return entries
}
