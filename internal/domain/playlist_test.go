package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPreview() *PlaylistPreview {
	return &PlaylistPreview{
		ID:    "PL123",
		Title: "Road Trip",
		Entries: []*PlaylistEntry{
			{ID: "v1", Title: "One"},
			{ID: "v2", Title: "Two"},
			{ID: "v3", Title: "Three"},
		},
	}
}

func TestNewPlaylistSelection_SelectsEverything(t *testing.T) {
	sel := NewPlaylistSelection(testPreview())

	assert.Equal(t, 1, sel.Version)
	assert.Equal(t, []string{"v1", "v2", "v3"}, sel.SelectedIDs())
}

func TestPlaylistSelection_WithSelectedSubset(t *testing.T) {
	sel := NewPlaylistSelection(testPreview())

	next, err := sel.WithSelected([]string{"v3", "v1"})
	require.NoError(t, err)

	// original playlist order, not argument order
	assert.Equal(t, []string{"v1", "v3"}, next.SelectedIDs())
	assert.Equal(t, 2, next.Version)

	// the previous value is untouched
	assert.Equal(t, []string{"v1", "v2", "v3"}, sel.SelectedIDs())
	assert.Equal(t, 1, sel.Version)
}

func TestPlaylistSelection_RejectsUnknownEntry(t *testing.T) {
	sel := NewPlaylistSelection(testPreview())

	_, err := sel.WithSelected([]string{"v1", "v9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v9")

	_, err = sel.Toggle("v9")
	require.Error(t, err)
}

func TestPlaylistSelection_Toggle(t *testing.T) {
	sel := NewPlaylistSelection(testPreview())

	next, err := sel.Toggle("v2")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v3"}, next.SelectedIDs())

	again, err := next.Toggle("v2")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v3"}, again.SelectedIDs())
	assert.Equal(t, 3, again.Version)
}

func TestPlaylistSelection_Clear(t *testing.T) {
	sel := NewPlaylistSelection(testPreview())

	next := sel.Clear()
	assert.Empty(t, next.SelectedIDs())
	assert.Equal(t, []string{"v1", "v2", "v3"}, sel.SelectedIDs())
}

func TestPlaylistSelection_CollectionOptions(t *testing.T) {
	sel := NewPlaylistSelection(testPreview())

	next := sel.WithCollection(true, "Road Trip Audio").WithGrouping(GroupByArtist)
	assert.True(t, next.CreateCollection)
	assert.Equal(t, "Road Trip Audio", next.CollectionName)
	assert.Equal(t, GroupByArtist, next.Grouping)
	assert.False(t, sel.CreateCollection)
}

func TestValidateGrouping(t *testing.T) {
	assert.True(t, ValidateGrouping(GroupNone))
	assert.True(t, ValidateGrouping(GroupByArtist))
	assert.True(t, ValidateGrouping(GroupByAlbum))
	assert.False(t, ValidateGrouping(GroupingMode("byYear")))
}
