package infrastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tunevault-go/internal/domain"
)

func TestYTDLPProgressParser_Parse(t *testing.T) {
	parser := NewYTDLPProgressParser()

	update, ok := parser.Parse("[download]  12.3% of    4.56MiB at    1.23MiB/s ETA 00:32")
	require.True(t, ok)
	assert.InDelta(t, 12.3, update.Percent, 0.01)
	assert.Equal(t, "1.23MiB/s", update.Speed)
	assert.Equal(t, "00:32", update.ETA)
	mib := float64(1 << 20)
	assert.Equal(t, int64(4.56*mib), update.TotalBytes)

	update, ok = parser.Parse("[download] 100.0% of ~  4.56MiB at  Unknown B/s ETA Unknown")
	require.True(t, ok)
	assert.InDelta(t, 100.0, update.Percent, 0.01)
	assert.Empty(t, update.Speed)
	assert.Empty(t, update.ETA)
}

func TestYTDLPProgressParser_IgnoresNonProgressLines(t *testing.T) {
	parser := NewYTDLPProgressParser()

	lines := []string{
		"[youtube] abc: Downloading webpage",
		"[download] Destination: /music/incoming/abc.webm",
		"[ExtractAudio] Destination: /music/incoming/abc.m4a",
		"Deleting original file /music/incoming/abc.webm",
		"",
	}
	for _, line := range lines {
		_, ok := parser.Parse(line)
		assert.False(t, ok, "line should not parse as progress: %q", line)
	}
}

func TestYTDLPProgressParser_PostProcessing(t *testing.T) {
	parser := NewYTDLPProgressParser()

	assert.True(t, parser.IsPostProcessing("[ExtractAudio] Destination: /music/incoming/abc.m4a"))
	assert.True(t, parser.IsPostProcessing("[ffmpeg] Correcting container"))
	assert.False(t, parser.IsPostProcessing("[download]  50.0% of 4.56MiB at 1.23MiB/s ETA 00:10"))
	assert.False(t, parser.IsPostProcessing("[youtube] abc: Downloading webpage"))
}

func TestYTDLPProgressParser_Destination(t *testing.T) {
	parser := NewYTDLPProgressParser()

	dest, ok := parser.Destination("[download] Destination: /music/incoming/abc.webm")
	require.True(t, ok)
	assert.Equal(t, "/music/incoming/abc.webm", dest)

	// the audio extraction destination wins because it comes later
	dest, ok = parser.Destination("[ExtractAudio] Destination: /music/incoming/abc.m4a")
	require.True(t, ok)
	assert.Equal(t, "/music/incoming/abc.m4a", dest)

	_, ok = parser.Destination("[download]  50.0% of 4.56MiB at 1.23MiB/s ETA 00:10")
	assert.False(t, ok)
}

func TestClassifyToolFailure(t *testing.T) {
	base := errors.New("exit status 1")

	tests := []struct {
		name      string
		stderr    string
		kind      domain.FetchErrorKind
		retryable bool
	}{
		{
			name:      "removed video is unavailable",
			stderr:    "ERROR: [youtube] abc: Video unavailable. This video has been removed",
			kind:      domain.FetchErrorUnavailable,
			retryable: false,
		},
		{
			name:      "private video is unavailable",
			stderr:    "ERROR: [youtube] abc: Private video. Sign in if you've been granted access",
			kind:      domain.FetchErrorUnavailable,
			retryable: false,
		},
		{
			name:      "connection reset is network",
			stderr:    "ERROR: unable to download webpage: Connection reset by peer",
			kind:      domain.FetchErrorNetwork,
			retryable: true,
		},
		{
			name:      "timeout is network",
			stderr:    "ERROR: unable to download webpage: The read operation timed out",
			kind:      domain.FetchErrorNetwork,
			retryable: true,
		},
		{
			name:      "unsupported url is format",
			stderr:    "ERROR: Unsupported URL: https://example.com/nothing",
			kind:      domain.FetchErrorFormat,
			retryable: false,
		},
		{
			name:      "unknown failure is process",
			stderr:    "something went sideways",
			kind:      domain.FetchErrorProcess,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetchErr := classifyToolFailure(tt.stderr, base)
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, tt.retryable, fetchErr.Retryable)
		})
	}
}

func TestClassifyToolFailure_UsesLastErrorLine(t *testing.T) {
	stderr := "WARNING: something minor\nERROR: first problem\nERROR: [youtube] abc: Video unavailable"
	fetchErr := classifyToolFailure(stderr, errors.New("exit status 1"))
	assert.Contains(t, fetchErr.Error(), "Video unavailable")
	assert.NotContains(t, fetchErr.Error(), "first problem")
}
