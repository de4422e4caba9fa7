// Package reconciler maintains a client-side mirror of the server's job
// records. Clients seed the mirror from a REST snapshot, then merge the
// event stream on top of it. Snapshots are authoritative; events are a
// best-effort delta channel.
package reconciler

import (
	"sync"

	"github.com/yourusername/tunevault-go/internal/domain"
)

// JobView is the client-side picture of one job. It carries only the
// fields the event protocol and the snapshot agree on.
type JobView struct {
	ID              string           `json:"id"`
	SourceURL       string           `json:"source_url"`
	Title           string           `json:"title"`
	Status          domain.JobStatus `json:"status"`
	ProgressPercent int              `json:"progress_percent"`
	Speed           string           `json:"speed,omitempty"`
	ETA             string           `json:"eta,omitempty"`
	MediaID         string           `json:"media_id,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Mirror holds the reconciled job views. Safe for concurrent use: one
// goroutine feeding events, others reading.
type Mirror struct {
	mu   sync.RWMutex
	jobs map[string]*JobView

	// selection is the working set for an in-flight playlist batch, kept
	// here so UI layers can revise it without touching server state
	selection *domain.PlaylistSelection
}

// NewMirror creates an empty mirror
func NewMirror() *Mirror {
	return &Mirror{jobs: make(map[string]*JobView)}
}

// ApplySnapshot replaces the mirror contents with an authoritative job
// list from the server. Local views with no server counterpart are
// dropped, resolving any drift accumulated over a dead connection.
func (m *Mirror) ApplySnapshot(jobs []*domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs = make(map[string]*JobView, len(jobs))
	for _, job := range jobs {
		m.jobs[job.ID] = &JobView{
			ID:              job.ID,
			SourceURL:       job.SourceURL,
			Title:           job.Title,
			Status:          job.Status,
			ProgressPercent: job.ProgressPercent,
			Speed:           job.Speed,
			ETA:             job.ETA,
			MediaID:         job.MediaID,
			Error:           job.ErrorMessage,
		}
	}
}

// Apply merges one event into the mirror. It returns false when the event
// references a job the mirror does not know, which signals the caller to
// resync with a fresh snapshot. The event is not lost in that case, the
// snapshot will already include its outcome.
func (m *Mirror) Apply(event domain.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	view, ok := m.jobs[event.JobID]
	if !ok {
		return false
	}

	switch event.Kind {
	case domain.EventStarted:
		view.Status = domain.StatusDownloading
		view.Title = event.Title
		view.ProgressPercent = 0
		view.Speed = ""
		view.ETA = ""
		view.Error = ""
	case domain.EventProgress:
		// a late tick after a terminal event must not resurrect the job
		if view.Status != domain.StatusDownloading {
			return true
		}
		if event.Percent != nil && *event.Percent > view.ProgressPercent {
			view.ProgressPercent = *event.Percent
		}
		view.Speed = event.Speed
		view.ETA = event.ETA
	case domain.EventCompleted:
		view.Status = domain.StatusCompleted
		view.ProgressPercent = 100
		view.Speed = ""
		view.ETA = ""
		view.MediaID = event.MediaID
		view.Error = ""
	case domain.EventFailed:
		view.Status = domain.StatusFailed
		view.Speed = ""
		view.ETA = ""
		view.Error = event.Error
	case domain.EventCancelled:
		view.Status = domain.StatusCancelled
		view.Speed = ""
		view.ETA = ""
	}
	return true
}

// Get returns a copy of one job view
func (m *Mirror) Get(id string) (JobView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view, ok := m.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return *view, true
}

// List returns copies of all job views
func (m *Mirror) List() []JobView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	views := make([]JobView, 0, len(m.jobs))
	for _, view := range m.jobs {
		views = append(views, *view)
	}
	return views
}

// Len returns the number of tracked jobs
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// SetSelection stores the working playlist selection
func (m *Mirror) SetSelection(selection domain.PlaylistSelection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = &selection
}

// Selection returns the working playlist selection, if any
func (m *Mirror) Selection() (domain.PlaylistSelection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.selection == nil {
		return domain.PlaylistSelection{}, false
	}
	return *m.selection, true
}

// ClearSelection drops the working playlist selection
func (m *Mirror) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = nil
}
