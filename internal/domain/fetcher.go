package domain

import (
	"context"
	"errors"
	"fmt"
)

// ProgressUpdate is one translated progress tick from the external tool
type ProgressUpdate struct {
	Percent         float64
	Speed           string // display string, e.g. "1.2 MiB/s"
	ETA             string // display string, e.g. "00:35"
	DownloadedBytes int64
	TotalBytes      int64
}

// FetchResult is the success outcome of one fetch
type FetchResult struct {
	SourceID        string
	Title           string
	Artist          string
	FilePath        string
	DurationSeconds int
	ThumbnailURL    string
}

// FetchHooks receives lifecycle callbacks from a running fetcher. Hooks are
// invoked from the fetcher's own goroutine, in order, for a single job.
type FetchHooks struct {
	// OnStarted fires once when the external process has begun and initial
	// metadata (title) is known.
	OnStarted func(title string)

	// OnProgress fires on every translated progress tick
	OnProgress func(update ProgressUpdate)

	// OnProcessing fires once when the raw transfer is done but
	// post-processing is still running
	OnProcessing func()
}

// Fetcher drives one external-tool invocation for one job. Cancellation is
// cooperative via the context: after ctx is cancelled the fetcher terminates
// the process and returns ctx.Err().
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string, hooks FetchHooks) (*FetchResult, error)
}

// FetchErrorKind classifies failures of the external tool
type FetchErrorKind string

const (
	FetchErrorNetwork     FetchErrorKind = "network"
	FetchErrorUnavailable FetchErrorKind = "unavailable"
	FetchErrorFormat      FetchErrorKind = "format"
	FetchErrorProcess     FetchErrorKind = "process"
)

// FetchError is a typed failure from a fetcher
type FetchError struct {
	Kind      FetchErrorKind
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transient network failure (retryable)
func NewNetworkError(err error) *FetchError {
	return &FetchError{Kind: FetchErrorNetwork, Retryable: true, Err: err}
}

// NewUnavailableError wraps a source failure such as a removed or private
// video. Not retryable in spirit, though retry is not forbidden.
func NewUnavailableError(err error) *FetchError {
	return &FetchError{Kind: FetchErrorUnavailable, Retryable: false, Err: err}
}

// NewFormatError wraps a failure to produce the requested format
func NewFormatError(err error) *FetchError {
	return &FetchError{Kind: FetchErrorFormat, Retryable: false, Err: err}
}

// NewProcessError wraps an external process failure (retryable)
func NewProcessError(err error) *FetchError {
	return &FetchError{Kind: FetchErrorProcess, Retryable: true, Err: err}
}

// IsRetryable reports whether an error carries a retryable fetch failure
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// VideoPreview is the metadata-only view of a single video
type VideoPreview struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

// Resolver expands URLs into metadata without downloading anything,
// using the external tool's metadata-only mode.
type Resolver interface {
	// ResolveVideo returns the preview for a single video URL
	ResolveVideo(ctx context.Context, url string) (*VideoPreview, error)

	// ResolvePlaylist returns the ordered entry list for a playlist URL
	ResolvePlaylist(ctx context.Context, url string) (*PlaylistPreview, error)
}
