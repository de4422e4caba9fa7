package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// mockJobRepo implements domain.JobRepository for testing. It hands out
// copies so tests can read records while runner goroutines mutate theirs.
type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*domain.Job)}
}

func (m *mockJobRepo) Create(job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := *job
	m.jobs[job.ID] = &snapshot
	return nil
}

func (m *mockJobRepo) Update(job *domain.Job) error {
	return m.Create(job)
}

func (m *mockJobRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *mockJobRepo) FindByID(id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		snapshot := *job
		return &snapshot, nil
	}
	return nil, nil
}

func (m *mockJobRepo) FindByStatus(status domain.JobStatus) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if job.Status == status {
			snapshot := *job
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (m *mockJobRepo) FindAll() ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockJobRepo) FindActive() ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if !job.IsTerminal() {
			snapshot := *job
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (m *mockJobRepo) GetStats() (*domain.JobStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.JobStats{}
	for _, job := range m.jobs {
		stats.Total++
		switch job.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusDownloading:
			stats.Downloading++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// fakeCatalog implements domain.MediaCatalog for testing
type fakeCatalog struct {
	mu            sync.Mutex
	mediaBySource map[string]*domain.Media
	collections   map[string]*domain.Collection
	items         map[string][]domain.CollectionItem
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		mediaBySource: make(map[string]*domain.Media),
		collections:   make(map[string]*domain.Collection),
		items:         make(map[string][]domain.CollectionItem),
	}
}

func (c *fakeCatalog) CreateMedia(media *domain.Media) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mediaBySource[media.SourceID]; ok {
		return errors.New("duplicate source id")
	}
	c.mediaBySource[media.SourceID] = media
	return nil
}

func (c *fakeCatalog) FindMediaBySourceID(sourceID string) (*domain.Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaBySource[sourceID], nil
}

func (c *fakeCatalog) CreateCollection(name string) (*domain.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	collection := &domain.Collection{ID: "col-" + name, Name: name}
	c.collections[collection.ID] = collection
	return collection, nil
}

func (c *fakeCatalog) AddToCollection(collectionID, mediaID string, position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[collectionID] = append(c.items[collectionID], domain.CollectionItem{
		CollectionID: collectionID,
		MediaID:      mediaID,
		Position:     position,
	})
	return nil
}

func (c *fakeCatalog) ListCollection(collectionID string) ([]*domain.Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := append([]domain.CollectionItem(nil), c.items[collectionID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	var out []*domain.Media
	for _, item := range items {
		for _, media := range c.mediaBySource {
			if media.ID == item.MediaID {
				out = append(out, media)
			}
		}
	}
	return out, nil
}

// fakeFetcher implements domain.Fetcher with a scripted run
type fakeFetcher struct {
	fetch func(ctx context.Context, sourceURL string, hooks domain.FetchHooks) (*domain.FetchResult, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
	return f.fetch(ctx, sourceURL, hooks)
}

// fakeResolver implements domain.Resolver with canned previews
type fakeResolver struct {
	video    *domain.VideoPreview
	playlist *domain.PlaylistPreview
	err      error
}

func (r *fakeResolver) ResolveVideo(ctx context.Context, url string) (*domain.VideoPreview, error) {
	return r.video, r.err
}

func (r *fakeResolver) ResolvePlaylist(ctx context.Context, url string) (*domain.PlaylistPreview, error) {
	return r.playlist, r.err
}

func newTestOrchestrator(t *testing.T, fetcher domain.Fetcher, resolver domain.Resolver, catalog domain.MediaCatalog, limit int) (*Orchestrator, *mockJobRepo, *EventBus) {
	t.Helper()
	repo := newMockJobRepo()
	if catalog == nil {
		catalog = newFakeCatalog()
	}
	bus := NewEventBus(zap.NewNop())
	config := &domain.DownloadsConfig{ConcurrentLimit: limit, StallTimeout: time.Minute}
	orch := NewOrchestrator(repo, catalog, fetcher, resolver, bus, nil, config, zap.NewNop())
	t.Cleanup(orch.Close)
	return orch, repo, bus
}

func waitForStatus(t *testing.T, repo *mockJobRepo, id string, status domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		job, _ = repo.FindByID(id)
		return job != nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

func TestStartJob_RejectsInvalidURL(t *testing.T) {
	orch, repo, _ := newTestOrchestrator(t, &fakeFetcher{}, &fakeResolver{}, nil, 1)

	_, err := orch.StartJob("not a url")
	require.Error(t, err)

	_, err = orch.StartJob("ftp://example.com/file")
	require.Error(t, err)

	jobs, _ := repo.FindAll()
	assert.Empty(t, jobs, "no record is created for a rejected URL")
}

func TestStartJob_HappyPath(t *testing.T) {
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		for _, pct := range []float64{10, 55, 100} {
			hooks.OnProgress(domain.ProgressUpdate{Percent: pct, Speed: "1.0 MiB/s", ETA: "00:10"})
		}
		hooks.OnProcessing()
		return &domain.FetchResult{SourceID: "src1", Title: "T", FilePath: "/tmp/t.mp3"}, nil
	}}
	orch, repo, bus := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 2)

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	job, err := orch.StartJob("https://example.com/watch?v=src1")
	require.NoError(t, err)

	final := waitForStatus(t, repo, job.ID, domain.StatusCompleted)
	assert.Equal(t, "T", final.Title)
	assert.Equal(t, 100, final.ProgressPercent)
	assert.NotEmpty(t, final.MediaID)
	assert.Empty(t, final.ErrorMessage)
	assert.NoError(t, final.ValidateInvariants())

	// events for one job arrive in transition order
	var kinds []domain.EventKind
	for i := 0; i < 5; i++ {
		select {
		case e := <-events:
			assert.Equal(t, job.ID, e.JobID)
			kinds = append(kinds, e.Kind)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventStarted,
		domain.EventProgress,
		domain.EventProgress,
		domain.EventProgress,
		domain.EventCompleted,
	}, kinds)
}

func TestStartJob_Failure(t *testing.T) {
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		return nil, domain.NewNetworkError(errors.New("connection reset"))
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)

	final := waitForStatus(t, repo, job.ID, domain.StatusFailed)
	assert.Contains(t, final.ErrorMessage, "connection reset")
	assert.True(t, final.Retryable)
	assert.Empty(t, final.MediaID)
	assert.NoError(t, final.ValidateInvariants())
}

func TestCancelJob_Running(t *testing.T) {
	started := make(chan struct{})
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)
	<-started

	require.NoError(t, orch.CancelJob(job.ID))

	final := waitForStatus(t, repo, job.ID, domain.StatusCancelled)
	assert.Empty(t, final.ErrorMessage)
	assert.NoError(t, final.ValidateInvariants())
}

func TestCancelJob_PendingWithoutRunner(t *testing.T) {
	block := make(chan struct{})
	admitted := make(chan struct{})
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		admitted <- struct{}{}
		<-block
		return nil, errors.New("never")
	}}
	defer close(block)

	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	first, err := orch.StartJob("https://example.com/watch?v=a")
	require.NoError(t, err)
	<-admitted

	// second job is parked in the admission queue, no runner spawned
	second, err := orch.StartJob("https://example.com/watch?v=b")
	require.NoError(t, err)

	pending, _ := repo.FindByID(second.ID)
	require.Equal(t, domain.StatusPending, pending.Status)

	require.NoError(t, orch.CancelJob(second.ID))
	waitForStatus(t, repo, second.ID, domain.StatusCancelled)

	// first job is untouched
	running, _ := repo.FindByID(first.ID)
	assert.False(t, running.IsTerminal())
}

func TestCancelJob_RaceWithSuccessfulFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		close(started)
		<-release
		// the process finished successfully despite the cancel request
		return &domain.FetchResult{SourceID: "src1", Title: "T", FilePath: "/tmp/t.mp3"}, nil
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)
	<-started

	require.NoError(t, orch.CancelJob(job.ID))
	close(release)

	// the cancel request was in flight, so cancelled is the recorded outcome
	final := waitForStatus(t, repo, job.ID, domain.StatusCancelled)
	assert.Empty(t, final.MediaID)
	assert.NoError(t, final.ValidateInvariants())
}

func TestCancelJob_TerminalRejected(t *testing.T) {
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		return &domain.FetchResult{SourceID: "s", Title: "T", FilePath: "/tmp/t.mp3"}, nil
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)
	waitForStatus(t, repo, job.ID, domain.StatusCompleted)

	err = orch.CancelJob(job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestRetryJob_ReusesIDAndClearsError(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		hooks.OnStarted("T")
		if n == 1 {
			hooks.OnProgress(domain.ProgressUpdate{Percent: 63})
			return nil, domain.NewNetworkError(errors.New("timeout"))
		}
		return &domain.FetchResult{SourceID: "src1", Title: "T", FilePath: "/tmp/t.mp3"}, nil
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)
	waitForStatus(t, repo, job.ID, domain.StatusFailed)

	retried, err := orch.RetryJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retried.ID)
	assert.Empty(t, retried.ErrorMessage)
	assert.Equal(t, 0, retried.ProgressPercent)

	final := waitForStatus(t, repo, job.ID, domain.StatusCompleted)
	assert.NotEmpty(t, final.MediaID)
	assert.NoError(t, final.ValidateInvariants())
}

func TestRetryJob_CompletedRejected(t *testing.T) {
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		return &domain.FetchResult{SourceID: "s", Title: "T", FilePath: "/tmp/t.mp3"}, nil
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)
	waitForStatus(t, repo, job.ID, domain.StatusCompleted)

	_, err = orch.RetryJob(job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestDeleteJob_OnlyTerminal(t *testing.T) {
	started := make(chan struct{})
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		hooks.OnStarted("T")
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	job, err := orch.StartJob("https://example.com/watch?v=x")
	require.NoError(t, err)
	<-started

	require.Error(t, orch.DeleteJob(job.ID), "active jobs cannot be deleted")

	require.NoError(t, orch.CancelJob(job.ID))
	waitForStatus(t, repo, job.ID, domain.StatusCancelled)

	require.NoError(t, orch.DeleteJob(job.ID))
	gone, _ := repo.FindByID(job.ID)
	assert.Nil(t, gone)
}

func TestConcurrencyLimit_QueuesBeyondLimit(t *testing.T) {
	release := make(chan struct{})
	admitted := make(chan struct{}, 2)
	fetcher := &fakeFetcher{fetch: func(ctx context.Context, url string, hooks domain.FetchHooks) (*domain.FetchResult, error) {
		admitted <- struct{}{}
		hooks.OnStarted("T")
		<-release
		return nil, domain.NewProcessError(errors.New("stopped"))
	}}
	orch, repo, _ := newTestOrchestrator(t, fetcher, &fakeResolver{}, nil, 1)

	first, err := orch.StartJob("https://example.com/watch?v=a")
	require.NoError(t, err)
	<-admitted
	waitForStatus(t, repo, first.ID, domain.StatusDownloading)

	second, err := orch.StartJob("https://example.com/watch?v=b")
	require.NoError(t, err)

	// the second job must hold at pending while the slot is taken
	time.Sleep(50 * time.Millisecond)
	held, _ := repo.FindByID(second.ID)
	assert.Equal(t, domain.StatusPending, held.Status)

	close(release)
	waitForStatus(t, repo, first.ID, domain.StatusFailed)
	waitForStatus(t, repo, second.ID, domain.StatusFailed)
}

func TestRecoverInterrupted_DemotesActiveJobs(t *testing.T) {
	orch, repo, _ := newTestOrchestrator(t, &fakeFetcher{}, &fakeResolver{}, nil, 1)

	stale := domain.NewJob("https://example.com/watch?v=x")
	require.NoError(t, stale.MarkDownloading("T"))
	require.NoError(t, repo.Create(stale))

	done := domain.NewJob("https://example.com/watch?v=y")
	require.NoError(t, done.MarkDownloading("T"))
	require.NoError(t, done.MarkProcessing())
	require.NoError(t, done.MarkCompleted("m1"))
	require.NoError(t, repo.Create(done))

	require.NoError(t, orch.RecoverInterrupted())

	demoted, _ := repo.FindByID(stale.ID)
	assert.Equal(t, domain.StatusFailed, demoted.Status)
	assert.Contains(t, demoted.ErrorMessage, "interrupted")

	untouched, _ := repo.FindByID(done.ID)
	assert.Equal(t, domain.StatusCompleted, untouched.Status)
}
