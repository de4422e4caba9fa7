package domain

import "fmt"

// PlaylistEntry is one entry of an expanded playlist. Ephemeral, never persisted.
type PlaylistEntry struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	URL             string `json:"url,omitempty"`
	Artist          string `json:"artist,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

// PlaylistPreview is the expanded view of a playlist URL
type PlaylistPreview struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Channel string           `json:"channel,omitempty"`
	Entries []*PlaylistEntry `json:"entries"`
}

// GroupingMode is an advisory display grouping for a playlist selection.
// It does not affect which entries are fetched.
type GroupingMode string

const (
	GroupNone     GroupingMode = "none"
	GroupByArtist GroupingMode = "byArtist"
	GroupByAlbum  GroupingMode = "byAlbum"
)

// PlaylistSelection is an immutable working set over a fetched playlist
// preview. Every mutation returns a new value with a bumped version so that
// concurrent readers never observe partial updates.
type PlaylistSelection struct {
	Version          int
	EntryIDs         []string        // id universe from the current preview, in order
	Selected         map[string]bool // subset of EntryIDs
	Grouping         GroupingMode
	CollectionName   string
	CreateCollection bool
}

// NewPlaylistSelection builds a selection over a preview with every entry selected
func NewPlaylistSelection(preview *PlaylistPreview) PlaylistSelection {
	ids := make([]string, 0, len(preview.Entries))
	selected := make(map[string]bool, len(preview.Entries))
	for _, entry := range preview.Entries {
		ids = append(ids, entry.ID)
		selected[entry.ID] = true
	}
	return PlaylistSelection{
		Version:  1,
		EntryIDs: ids,
		Selected: selected,
		Grouping: GroupNone,
	}
}

func (s PlaylistSelection) contains(id string) bool {
	for _, known := range s.EntryIDs {
		if known == id {
			return true
		}
	}
	return false
}

func (s PlaylistSelection) clone() PlaylistSelection {
	next := s
	next.Version++
	next.Selected = make(map[string]bool, len(s.Selected))
	for id, on := range s.Selected {
		next.Selected[id] = on
	}
	return next
}

// WithSelected replaces the selected set. Ids not present in the current
// preview are rejected.
func (s PlaylistSelection) WithSelected(ids []string) (PlaylistSelection, error) {
	next := s.clone()
	next.Selected = make(map[string]bool, len(ids))
	for _, id := range ids {
		if !s.contains(id) {
			return s, fmt.Errorf("entry %s is not part of the current preview", id)
		}
		next.Selected[id] = true
	}
	return next, nil
}

// Toggle flips one entry's selected state
func (s PlaylistSelection) Toggle(id string) (PlaylistSelection, error) {
	if !s.contains(id) {
		return s, fmt.Errorf("entry %s is not part of the current preview", id)
	}
	next := s.clone()
	if next.Selected[id] {
		delete(next.Selected, id)
	} else {
		next.Selected[id] = true
	}
	return next, nil
}

// WithGrouping sets the advisory grouping mode
func (s PlaylistSelection) WithGrouping(mode GroupingMode) PlaylistSelection {
	next := s.clone()
	next.Grouping = mode
	return next
}

// WithCollection sets the destination collection options
func (s PlaylistSelection) WithCollection(create bool, name string) PlaylistSelection {
	next := s.clone()
	next.CreateCollection = create
	next.CollectionName = name
	return next
}

// Clear deselects everything
func (s PlaylistSelection) Clear() PlaylistSelection {
	next := s.clone()
	next.Selected = make(map[string]bool)
	return next
}

// SelectedIDs returns the selected ids in original playlist order
func (s PlaylistSelection) SelectedIDs() []string {
	ids := make([]string, 0, len(s.Selected))
	for _, id := range s.EntryIDs {
		if s.Selected[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// ValidateGrouping checks if a grouping mode is valid
func ValidateGrouping(mode GroupingMode) bool {
	return mode == GroupNone || mode == GroupByArtist || mode == GroupByAlbum
}
