package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// YTDLPResolver expands URLs into metadata using yt-dlp's -J mode,
// without downloading any media.
type YTDLPResolver struct {
	config *domain.DownloadsConfig
	logger *zap.Logger
}

// NewYTDLPResolver creates a new metadata resolver
func NewYTDLPResolver(config *domain.DownloadsConfig, logger *zap.Logger) *YTDLPResolver {
	return &YTDLPResolver{config: config, logger: logger}
}

type flatThumbnail struct {
	URL string `json:"url"`
}

type flatEntry struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	URL        string          `json:"url"`
	WebpageURL string          `json:"webpage_url"`
	Duration   float64         `json:"duration"`
	Artist     string          `json:"artist"`
	Uploader   string          `json:"uploader"`
	Channel    string          `json:"channel"`
	Thumbnails []flatThumbnail `json:"thumbnails"`
}

type flatPlaylist struct {
	Type     string      `json:"_type"`
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Channel  string      `json:"channel"`
	Uploader string      `json:"uploader"`
	Entries  []flatEntry `json:"entries"`

	// set when the URL points at a single video
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

// ResolveVideo returns the metadata-only preview for a single video URL
func (r *YTDLPResolver) ResolveVideo(ctx context.Context, url string) (*domain.VideoPreview, error) {
	info, err := r.dump(ctx, url, false)
	if err != nil {
		return nil, err
	}
	if info.Type == "playlist" {
		return nil, fmt.Errorf("URL resolves to a playlist, not a single video")
	}
	return &domain.VideoPreview{
		ID:              info.ID,
		Title:           info.Title,
		DurationSeconds: int(info.Duration),
		ThumbnailURL:    info.Thumbnail,
	}, nil
}

// ResolvePlaylist returns the ordered entry list for a playlist URL
func (r *YTDLPResolver) ResolvePlaylist(ctx context.Context, url string) (*domain.PlaylistPreview, error) {
	info, err := r.dump(ctx, url, true)
	if err != nil {
		return nil, err
	}
	if info.Type != "playlist" {
		return nil, fmt.Errorf("URL does not resolve to a playlist")
	}

	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}

	preview := &domain.PlaylistPreview{
		ID:      info.ID,
		Title:   info.Title,
		Channel: channel,
		Entries: make([]*domain.PlaylistEntry, 0, len(info.Entries)),
	}
	for _, entry := range info.Entries {
		preview.Entries = append(preview.Entries, mapEntry(entry))
	}

	r.logger.Debug("Playlist expanded",
		zap.String("id", preview.ID),
		zap.Int("entries", len(preview.Entries)))
	return preview, nil
}

func mapEntry(entry flatEntry) *domain.PlaylistEntry {
	url := entry.URL
	if url == "" {
		url = entry.WebpageURL
	}
	artist := entry.Artist
	if artist == "" {
		artist = entry.Uploader
	}
	mapped := &domain.PlaylistEntry{
		ID:              entry.ID,
		Title:           entry.Title,
		URL:             url,
		Artist:          artist,
		DurationSeconds: int(entry.Duration),
	}
	if len(entry.Thumbnails) > 0 {
		mapped.ThumbnailURL = entry.Thumbnails[len(entry.Thumbnails)-1].URL
	}
	return mapped
}

// dump runs yt-dlp -J and decodes the single JSON document it prints
func (r *YTDLPResolver) dump(ctx context.Context, url string, flat bool) (*flatPlaylist, error) {
	args := []string{"-J", "--no-warnings"}
	if flat {
		args = append(args, "--flat-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	if r.config.CookieFile != "" {
		if _, err := os.Stat(r.config.CookieFile); err == nil {
			args = append(args, "--cookies", r.config.CookieFile)
		}
	}
	args = append(args, url)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.config.YTDLPBinary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyToolFailure(stderr.String(), fmt.Errorf("failed to resolve %s: %w", url, err))
	}

	var info flatPlaylist
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, domain.NewProcessError(fmt.Errorf("unreadable metadata output: %w", err))
	}
	return &info, nil
}
