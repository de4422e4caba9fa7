package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// Notifier sends user-facing notifications for terminal job outcomes
type Notifier interface {
	NotifyJobCompleted(title string)
	NotifyJobFailed(title string, err error)
}

// Orchestrator is the state-machine core of the download subsystem. It
// accepts start/cancel/retry requests, supervises one fetcher invocation per
// job, enforces the concurrent-download limit and publishes every applied
// transition to the event bus.
type Orchestrator struct {
	repo     domain.JobRepository
	catalog  domain.MediaCatalog
	fetcher  domain.Fetcher
	resolver domain.Resolver
	bus      *EventBus
	notifier Notifier
	config   *domain.DownloadsConfig
	logger   *zap.Logger

	slots chan struct{}

	rootCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	handles map[string]*jobHandle
}

// jobHandle serializes mutations of one job record. The runner goroutine
// and an externally issued cancel are the only writers.
type jobHandle struct {
	mu              sync.Mutex
	cancelFetch     context.CancelFunc // nil until the runner launches
	cancelRequested bool
	quit            chan struct{} // wakes a job parked in the admission queue
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	repo domain.JobRepository,
	catalog domain.MediaCatalog,
	fetcher domain.Fetcher,
	resolver domain.Resolver,
	bus *EventBus,
	notifier Notifier,
	config *domain.DownloadsConfig,
	logger *zap.Logger,
) *Orchestrator {
	limit := config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		repo:      repo,
		catalog:   catalog,
		fetcher:   fetcher,
		resolver:  resolver,
		bus:       bus,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		slots:     make(chan struct{}, limit),
		rootCtx:   ctx,
		cancelAll: cancel,
		handles:   make(map[string]*jobHandle),
	}
}

// RecoverInterrupted demotes jobs left non-terminal by a previous process
// run. Called once at startup, before any new job is accepted.
func (o *Orchestrator) RecoverInterrupted() error {
	active, err := o.repo.FindActive()
	if err != nil {
		return fmt.Errorf("failed to load active jobs: %w", err)
	}
	for _, job := range active {
		if err := job.MarkFailed(errors.New("interrupted by restart"), true); err != nil {
			o.logger.Warn("Could not demote interrupted job",
				zap.String("id", job.ID),
				zap.Error(err))
			continue
		}
		if err := o.repo.Update(job); err != nil {
			return fmt.Errorf("failed to update interrupted job %s: %w", job.ID, err)
		}
		o.logger.Info("Demoted interrupted job", zap.String("id", job.ID))
	}
	return nil
}

// StartJob validates the URL, creates a pending job record and launches its
// runner. The call returns immediately; terminal outcomes are observed via
// the event stream or a subsequent read.
func (o *Orchestrator) StartJob(sourceURL string) (*domain.Job, error) {
	if err := ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}

	job := domain.NewJob(sourceURL)
	if err := o.repo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	o.launch(job)

	o.logger.Info("Job started",
		zap.String("id", job.ID),
		zap.String("url", sourceURL))

	snapshot := *job
	return &snapshot, nil
}

// launch registers a handle for the job and spawns its runner goroutine
func (o *Orchestrator) launch(job *domain.Job) {
	handle := &jobHandle{quit: make(chan struct{})}

	o.mu.Lock()
	o.handles[job.ID] = handle
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(job, handle)
}

// run drives one fetch attempt for one job: admission, runner supervision
// and the terminal transition.
func (o *Orchestrator) run(job *domain.Job, h *jobHandle) {
	defer o.wg.Done()
	defer o.unregister(job.ID)

	// FIFO-ish admission: the job stays pending until a slot frees
	select {
	case o.slots <- struct{}{}:
	case <-h.quit:
		// cancelled while pending; Cancel already recorded the outcome
		return
	case <-o.rootCtx.Done():
		o.finishFailed(job, h, errors.New("interrupted by shutdown"))
		return
	}
	defer func() { <-o.slots }()

	ctx, cancel := context.WithCancel(o.rootCtx)
	defer cancel()

	h.mu.Lock()
	if h.cancelRequested {
		// cancel raced admission; Cancel recorded the outcome already
		h.mu.Unlock()
		return
	}
	h.cancelFetch = cancel
	h.mu.Unlock()

	result, err := o.fetcher.Fetch(ctx, job.SourceURL, domain.FetchHooks{
		OnStarted:    func(title string) { o.applyStarted(job, h, title) },
		OnProgress:   func(update domain.ProgressUpdate) { o.applyProgress(job, h, update) },
		OnProcessing: func() { o.applyProcessing(job, h) },
	})

	h.mu.Lock()
	cancelled := h.cancelRequested
	h.mu.Unlock()

	switch {
	case cancelled:
		// Accepted race: if the process finished microseconds before the
		// cancel request, cancelled is still the recorded outcome.
		o.finishCancelled(job, h)
	case err != nil:
		if o.rootCtx.Err() != nil {
			err = errors.New("interrupted by shutdown")
		}
		o.finishFailed(job, h, err)
	default:
		o.finishCompleted(job, h, result)
	}
}

func (o *Orchestrator) unregister(id string) {
	o.mu.Lock()
	delete(o.handles, id)
	o.mu.Unlock()
}

func (o *Orchestrator) applyStarted(job *domain.Job, h *jobHandle, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelRequested {
		return
	}
	if err := job.MarkDownloading(title); err != nil {
		o.logger.Warn("Rejected transition", zap.Error(err))
		return
	}
	o.persist(job)
	o.bus.Publish(domain.StartedEvent(job.ID, job.Title))
}

func (o *Orchestrator) applyProgress(job *domain.Job, h *jobHandle, update domain.ProgressUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelRequested || job.Status != domain.StatusDownloading {
		return
	}
	job.UpdateProgress(int(update.Percent), update.Speed, update.ETA)
	o.persist(job)
	o.bus.Publish(domain.ProgressEvent(job.ID, job.ProgressPercent, job.Speed, job.ETA))
}

func (o *Orchestrator) applyProcessing(job *domain.Job, h *jobHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelRequested {
		return
	}
	if err := job.MarkProcessing(); err != nil {
		o.logger.Warn("Rejected transition", zap.Error(err))
		return
	}
	o.persist(job)
}

func (o *Orchestrator) finishCancelled(job *domain.Job, h *jobHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := job.MarkCancelled(); err != nil {
		o.logger.Warn("Rejected transition", zap.Error(err))
		return
	}
	o.persist(job)
	o.bus.Publish(domain.CancelledEvent(job.ID))
	o.logger.Info("Job cancelled", zap.String("id", job.ID))
}

func (o *Orchestrator) finishFailed(job *domain.Job, h *jobHandle, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := job.MarkFailed(cause, domain.IsRetryable(cause)); err != nil {
		o.logger.Warn("Rejected transition", zap.Error(err))
		return
	}
	o.persist(job)
	o.bus.Publish(domain.FailedEvent(job.ID, job.ErrorMessage))
	o.logger.Error("Job failed",
		zap.String("id", job.ID),
		zap.String("url", job.SourceURL),
		zap.Error(cause))
	if o.notifier != nil {
		o.notifier.NotifyJobFailed(job.Title, cause)
	}
}

func (o *Orchestrator) finishCompleted(job *domain.Job, h *jobHandle, result *domain.FetchResult) {
	mediaID, err := o.registerMedia(job, result)
	if err != nil {
		o.finishFailed(job, h, fmt.Errorf("failed to catalog download: %w", err))
		return
	}

	h.mu.Lock()
	job.SourceID = result.SourceID
	if job.Status == domain.StatusDownloading {
		// tool emitted no post-processing marker; pass through processing
		if err := job.MarkProcessing(); err != nil {
			o.logger.Warn("Rejected transition", zap.Error(err))
		}
	}
	if err := job.MarkCompleted(mediaID); err != nil {
		h.mu.Unlock()
		o.logger.Warn("Rejected transition", zap.Error(err))
		return
	}
	o.persist(job)
	o.bus.Publish(domain.CompletedEvent(job.ID, mediaID))
	h.mu.Unlock()

	if job.CollectionID != "" {
		if err := o.catalog.AddToCollection(job.CollectionID, mediaID, job.PlaylistIndex); err != nil {
			o.logger.Error("Failed to add media to collection",
				zap.String("collection_id", job.CollectionID),
				zap.String("media_id", mediaID),
				zap.Error(err))
		}
	}

	o.logger.Info("Job completed",
		zap.String("id", job.ID),
		zap.String("media_id", mediaID),
		zap.String("file", result.FilePath))
	if o.notifier != nil {
		o.notifier.NotifyJobCompleted(job.Title)
	}
}

// registerMedia creates the catalog entry for a fetch result, reusing an
// existing record when another job already imported the same source.
func (o *Orchestrator) registerMedia(job *domain.Job, result *domain.FetchResult) (string, error) {
	if existing, err := o.catalog.FindMediaBySourceID(result.SourceID); err != nil {
		return "", err
	} else if existing != nil {
		return existing.ID, nil
	}

	media := domain.NewMedia(result.SourceID, job.SourceURL, result.Title, result.FilePath)
	media.Artist = result.Artist
	media.DurationSeconds = result.DurationSeconds
	media.ThumbnailURL = result.ThumbnailURL
	if err := o.catalog.CreateMedia(media); err != nil {
		return "", err
	}
	return media.ID, nil
}

// CancelJob requests termination of a job. The call acknowledges
// immediately; for a running job the cancelled transition is recorded once
// the runner confirms. A pending job with no runner reaches cancelled
// directly.
func (o *Orchestrator) CancelJob(id string) error {
	job, err := o.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.IsTerminal() {
		return fmt.Errorf("job already in terminal state: %s", job.Status)
	}

	o.mu.Lock()
	handle := o.handles[id]
	o.mu.Unlock()

	if handle == nil {
		// no runner registered (should not happen outside of restarts):
		// treat as a pending job with a no-op runner cancel
		h := &jobHandle{quit: make(chan struct{})}
		h.cancelRequested = true
		o.finishCancelled(job, h)
		return nil
	}

	handle.mu.Lock()
	if handle.cancelRequested {
		handle.mu.Unlock()
		return nil
	}
	handle.cancelRequested = true
	cancelFetch := handle.cancelFetch
	handle.mu.Unlock()

	if cancelFetch != nil {
		// cooperative: the runner terminates the process and the terminal
		// transition is applied when Fetch returns
		cancelFetch()
		return nil
	}

	// still pending in the admission queue
	o.finishCancelled(job, handle)
	close(handle.quit)
	return nil
}

// RetryJob starts a fresh attempt under the same job id. Only failed and
// cancelled jobs can be retried.
func (o *Orchestrator) RetryJob(id string) (*domain.Job, error) {
	job, err := o.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job not found: %s", id)
	}

	switch job.Status {
	case domain.StatusFailed, domain.StatusCancelled:
	case domain.StatusCompleted:
		return nil, fmt.Errorf("job already completed: %s", id)
	default:
		return nil, fmt.Errorf("job is not in a terminal failure state: %s", job.Status)
	}

	if err := job.ResetForRetry(); err != nil {
		return nil, err
	}
	if err := o.repo.Update(job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	o.launch(job)

	o.logger.Info("Job queued for retry", zap.String("id", id))
	snapshot := *job
	return &snapshot, nil
}

// DeleteJob removes a terminal job record from the store
func (o *Orchestrator) DeleteJob(id string) error {
	job, err := o.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}
	if !job.IsTerminal() {
		return fmt.Errorf("cannot delete job in state %s", job.Status)
	}
	return o.repo.Delete(id)
}

// ListJobs returns the authoritative snapshot of all job records
func (o *Orchestrator) ListJobs() ([]*domain.Job, error) {
	return o.repo.FindAll()
}

// GetJob returns one job record
func (o *Orchestrator) GetJob(id string) (*domain.Job, error) {
	job, err := o.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job, nil
}

// GetStats returns job counts by status
func (o *Orchestrator) GetStats() (*domain.JobStats, error) {
	return o.repo.GetStats()
}

// ListCollection returns a collection's media in original playlist order
func (o *Orchestrator) ListCollection(collectionID string) ([]*domain.Media, error) {
	return o.catalog.ListCollection(collectionID)
}

// VideoPreview resolves metadata for a single video URL without downloading
func (o *Orchestrator) VideoPreview(ctx context.Context, sourceURL string) (*domain.VideoPreview, error) {
	if err := ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}
	return o.resolver.ResolveVideo(ctx, sourceURL)
}

// PlaylistPreview expands a playlist URL into its ordered entry list
func (o *Orchestrator) PlaylistPreview(ctx context.Context, sourceURL string) (*domain.PlaylistPreview, error) {
	if err := ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}
	return o.resolver.ResolvePlaylist(ctx, sourceURL)
}

// Close stops accepting work, cancels running fetchers and waits for all
// runner goroutines to record their terminal outcome.
func (o *Orchestrator) Close() {
	o.cancelAll()
	o.wg.Wait()
}

func (o *Orchestrator) persist(job *domain.Job) {
	if err := o.repo.Update(job); err != nil {
		o.logger.Error("Failed to persist job",
			zap.String("id", job.ID),
			zap.Error(err))
	}
}

// ValidateSourceURL rejects malformed URLs before any job record is created
func ValidateSourceURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("invalid URL: missing host")
	}
	return nil
}
