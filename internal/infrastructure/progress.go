package infrastructure

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// ProgressParser translates one raw output line of the external tool into a
// structured progress update. Isolating the parsing here lets the strategy
// be swapped per tool version without touching the orchestrator.
type ProgressParser interface {
	// Parse returns the update and true when the line is a progress line
	Parse(line string) (domain.ProgressUpdate, bool)

	// IsPostProcessing reports whether the line marks the start of
	// post-processing (conversion, tagging)
	IsPostProcessing(line string) bool

	// Destination extracts the output file path from a destination line,
	// returning false for any other line
	Destination(line string) (string, bool)
}

// yt-dlp with --newline prints lines like:
//   [download]  12.3% of    4.56MiB at    1.23MiB/s ETA 00:32
//   [download] 100.0% of ~  4.56MiB at  Unknown B/s ETA Unknown
var ytdlpProgressRe = regexp.MustCompile(
	`^\[download\]\s+([\d.]+)%\s+of\s+~?\s*([\d.]+)(B|KiB|MiB|GiB|TiB)\s+at\s+(\S+(?:\s+B/s)?)\s+ETA\s+(\S+)`)

var ytdlpDestinationRe = regexp.MustCompile(`^\[(?:download|ExtractAudio)\]\s+Destination:\s+(.+)$`)

var ytdlpPostProcessPrefixes = []string{
	"[ExtractAudio]",
	"[ffmpeg]",
	"[Merger]",
	"[Metadata]",
	"[EmbedThumbnail]",
}

// YTDLPProgressParser parses yt-dlp's --newline progress output
type YTDLPProgressParser struct{}

// NewYTDLPProgressParser creates a parser for yt-dlp progress lines
func NewYTDLPProgressParser() *YTDLPProgressParser {
	return &YTDLPProgressParser{}
}

// Parse translates one yt-dlp output line
func (p *YTDLPProgressParser) Parse(line string) (domain.ProgressUpdate, bool) {
	matches := ytdlpProgressRe.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return domain.ProgressUpdate{}, false
	}

	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return domain.ProgressUpdate{}, false
	}

	update := domain.ProgressUpdate{Percent: percent}

	if size, err := strconv.ParseFloat(matches[2], 64); err == nil {
		update.TotalBytes = int64(size * float64(unitMultiplier(matches[3])))
		update.DownloadedBytes = int64(float64(update.TotalBytes) * percent / 100)
	}

	if speed := matches[4]; speed != "Unknown" && speed != "Unknown B/s" {
		update.Speed = speed
	}
	if eta := matches[5]; eta != "Unknown" {
		update.ETA = eta
	}

	return update, true
}

// IsPostProcessing reports whether the line marks the start of post-processing
func (p *YTDLPProgressParser) IsPostProcessing(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range ytdlpPostProcessPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// Destination extracts the output file path from a destination line
func (p *YTDLPProgressParser) Destination(line string) (string, bool) {
	matches := ytdlpDestinationRe.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return "", false
	}
	return matches[1], true
}

func unitMultiplier(unit string) int64 {
	switch unit {
	case "KiB":
		return 1 << 10
	case "MiB":
		return 1 << 20
	case "GiB":
		return 1 << 30
	case "TiB":
		return 1 << 40
	default:
		return 1
	}
}
