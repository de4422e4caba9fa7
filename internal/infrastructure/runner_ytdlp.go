package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// YTDLPRunner drives one yt-dlp invocation per job. It probes metadata
// first (the tool's metadata-only mode), then downloads into the incoming
// directory and moves the converted file into the media directory.
type YTDLPRunner struct {
	config  *domain.DownloadsConfig
	library *domain.LibraryConfig
	parser  ProgressParser
	logger  *zap.Logger
}

// NewYTDLPRunner creates a new yt-dlp fetch runner
func NewYTDLPRunner(config *domain.DownloadsConfig, library *domain.LibraryConfig, logger *zap.Logger) *YTDLPRunner {
	return &YTDLPRunner{
		config:  config,
		library: library,
		parser:  NewYTDLPProgressParser(),
		logger:  logger,
	}
}

// SetParser swaps the progress-line translation strategy
func (r *YTDLPRunner) SetParser(parser ProgressParser) {
	r.parser = parser
}

// probeInfo is the subset of yt-dlp's -J output the runner cares about
type probeInfo struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Artist    string  `json:"artist"`
	Uploader  string  `json:"uploader"`
}

// Fetch invokes yt-dlp once for one URL. Cancellation is cooperative: when
// ctx is cancelled the process is terminated and ctx.Err() is returned.
func (r *YTDLPRunner) Fetch(ctx context.Context, sourceURL string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
	info, err := r.probe(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if hooks.OnStarted != nil {
		hooks.OnStarted(info.Title)
	}

	filePath, err := r.download(ctx, sourceURL, info, hooks)
	if err != nil {
		return nil, err
	}

	artist := info.Artist
	if artist == "" {
		artist = info.Uploader
	}

	return &domain.FetchResult{
		SourceID:        info.ID,
		Title:           info.Title,
		Artist:          artist,
		FilePath:        filePath,
		DurationSeconds: int(info.Duration),
		ThumbnailURL:    info.Thumbnail,
	}, nil
}

// probe fetches metadata without downloading anything
func (r *YTDLPRunner) probe(ctx context.Context, sourceURL string) (*probeInfo, error) {
	args := []string{"-J", "--no-playlist", "--no-warnings"}
	args = r.appendCookies(args)
	args = append(args, sourceURL)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.config.YTDLPBinary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyToolFailure(stderr.String(), fmt.Errorf("metadata probe failed: %w", err))
	}

	var info probeInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, domain.NewProcessError(fmt.Errorf("unreadable metadata output: %w", err))
	}
	if info.ID == "" {
		return nil, domain.NewUnavailableError(fmt.Errorf("no media found at %s", sourceURL))
	}
	return &info, nil
}

// download runs the actual transfer and returns the final media file path
func (r *YTDLPRunner) download(ctx context.Context, sourceURL string, info *probeInfo, hooks domain.FetchHooks) (string, error) {
	if err := os.MkdirAll(r.library.IncomingDir, 0755); err != nil {
		return "", domain.NewProcessError(fmt.Errorf("failed to create incoming directory: %w", err))
	}

	args := []string{
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--no-warnings",
		"--restrict-filenames",
		"-x", "--audio-format", r.config.AudioFormat,
		"-o", "%(id)s.%(ext)s",
		"-P", r.library.IncomingDir,
	}
	args = r.appendCookies(args)
	args = append(args, sourceURL)

	// Child context so the stall watchdog can kill the process without
	// cancelling the caller.
	procCtx, stopProc := context.WithCancel(ctx)
	defer stopProc()

	cmd := exec.CommandContext(procCtx, r.config.YTDLPBinary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", domain.NewProcessError(err)
	}

	commandLog, logErr := r.openCommandLog()
	if logErr != nil {
		r.logger.Warn("Could not open command log", zap.Error(logErr))
	} else {
		defer commandLog.Close()
		r.writeLogHeader(commandLog, info.ID, ShellEscapeCommand(r.config.YTDLPBinary, args...))
	}

	if err := cmd.Start(); err != nil {
		return "", domain.NewProcessError(fmt.Errorf("failed to start %s: %w", r.config.YTDLPBinary, err))
	}

	var stalled bool
	var stalledMu sync.Mutex
	var watchdog *time.Timer
	if r.config.StallTimeout > 0 {
		watchdog = time.AfterFunc(r.config.StallTimeout, func() {
			stalledMu.Lock()
			stalled = true
			stalledMu.Unlock()
			stopProc()
		})
		defer watchdog.Stop()
	}

	var destination string
	processing := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if watchdog != nil {
			watchdog.Reset(r.config.StallTimeout)
		}

		if update, ok := r.parser.Parse(line); ok {
			if hooks.OnProgress != nil {
				hooks.OnProgress(update)
			}
			continue
		}
		if path, ok := r.parser.Destination(line); ok {
			destination = path
		}
		if !processing && r.parser.IsPostProcessing(line) {
			processing = true
			if hooks.OnProcessing != nil {
				hooks.OnProcessing()
			}
		}
	}

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		r.writeLogFooter(commandLog, false, "cancelled")
		return "", ctx.Err()
	}
	stalledMu.Lock()
	wasStalled := stalled
	stalledMu.Unlock()
	if wasStalled {
		r.writeLogFooter(commandLog, false, "stalled")
		return "", domain.NewProcessError(fmt.Errorf("no output for %s, process killed", r.config.StallTimeout))
	}
	if waitErr != nil {
		r.writeLogFooter(commandLog, false, fmt.Sprintf("%s failed: %v", r.config.YTDLPBinary, waitErr))
		return "", classifyToolFailure(stderr.String(), fmt.Errorf("%s failed: %w", r.config.YTDLPBinary, waitErr))
	}

	if destination == "" {
		destination = filepath.Join(r.library.IncomingDir, info.ID+"."+r.config.AudioFormat)
	}
	if !filepath.IsAbs(destination) {
		destination = filepath.Join(r.library.IncomingDir, filepath.Base(destination))
	}

	finalPath, err := r.moveToMedia(destination)
	if err != nil {
		r.writeLogFooter(commandLog, false, fmt.Sprintf("failed to move file: %v", err))
		return "", domain.NewProcessError(err)
	}

	r.writeLogFooter(commandLog, true, fmt.Sprintf("Downloaded: %s", finalPath))
	return finalPath, nil
}

// moveToMedia moves the converted file from incoming to the media directory
func (r *YTDLPRunner) moveToMedia(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}
	if err := os.MkdirAll(r.library.MediaDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	destPath := filepath.Join(r.library.MediaDir, filepath.Base(path))
	if err := os.Rename(path, destPath); err != nil {
		// rename fails across filesystems, fall back to copy and delete
		if err := copyFile(path, destPath); err != nil {
			return "", fmt.Errorf("failed to move file %s: %w", path, err)
		}
		os.Remove(path)
	}
	return destPath, nil
}

func (r *YTDLPRunner) appendCookies(args []string) []string {
	if r.config.CookieFile != "" {
		if _, err := os.Stat(r.config.CookieFile); err == nil {
			args = append(args, "--cookies", r.config.CookieFile)
		}
	}
	return args
}

// openCommandLog opens the daily command log file
func (r *YTDLPRunner) openCommandLog() (*os.File, error) {
	if err := os.MkdirAll(r.library.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	dateStr := time.Now().Format("20060102")
	path := filepath.Join(r.library.LogsDir, "download-"+dateStr+".log")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (r *YTDLPRunner) writeLogHeader(file *os.File, sourceID, cmdLine string) {
	if file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	file.WriteString(fmt.Sprintf("\n=== [%s] Fetch: %s ===\n", timestamp, sourceID))
	file.WriteString(fmt.Sprintf("$ %s\n", cmdLine))
}

func (r *YTDLPRunner) writeLogFooter(file *os.File, success bool, message string) {
	if file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	file.WriteString(fmt.Sprintf("[%s] %s: %s\n", timestamp, status, message))
	file.WriteString("=== END ===\n\n")
}

// classifyToolFailure maps yt-dlp stderr output onto the typed fetch errors
func classifyToolFailure(stderr string, cause error) *domain.FetchError {
	combined := cause.Error() + "\n" + stderr
	if tail := lastErrorLine(stderr); tail != "" {
		cause = fmt.Errorf("%s", tail)
	}

	lower := strings.ToLower(combined)
	switch {
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "members-only"),
		strings.Contains(lower, "sign in to confirm your age"),
		strings.Contains(lower, "http error 404"),
		strings.Contains(lower, "http error 403"),
		strings.Contains(lower, "http error 410"):
		return domain.NewUnavailableError(cause)
	case strings.Contains(lower, "unable to download webpage"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "name resolution"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "http error 5"):
		return domain.NewNetworkError(cause)
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "requested format"),
		strings.Contains(lower, "no video formats"),
		strings.Contains(lower, "postprocessing"),
		strings.Contains(lower, "ffprobe"):
		return domain.NewFormatError(cause)
	default:
		return domain.NewProcessError(cause)
	}
}

// lastErrorLine picks the last ERROR: line from tool output for a concise
// human-readable cause
func lastErrorLine(output string) string {
	var last string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "ERROR:") {
			last = strings.TrimSpace(strings.TrimPrefix(trimmed, "ERROR:"))
		}
	}
	return last
}

// copyFile copies a file's contents preserving mode 0644
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
