package domain

// EventKind identifies one of the five job event kinds on the stream
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// Event is one job state change pushed to connected clients. Only the
// fields relevant to the kind are set; consumers apply a field-level merge.
// Delivery is best-effort: progress ticks may be dropped under backpressure
// since the next tick supersedes them.
type Event struct {
	Kind    EventKind `json:"kind"`
	JobID   string    `json:"job_id"`
	Title   string    `json:"title,omitempty"`
	Percent *int      `json:"percent,omitempty"`
	Speed   string    `json:"speed,omitempty"`
	ETA     string    `json:"eta,omitempty"`
	MediaID string    `json:"media_id,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// StartedEvent builds the event for a pending -> downloading transition
func StartedEvent(jobID, title string) Event {
	return Event{Kind: EventStarted, JobID: jobID, Title: title}
}

// ProgressEvent builds the event for one progress tick
func ProgressEvent(jobID string, percent int, speed, eta string) Event {
	return Event{Kind: EventProgress, JobID: jobID, Percent: &percent, Speed: speed, ETA: eta}
}

// CompletedEvent builds the event for a successful completion
func CompletedEvent(jobID, mediaID string) Event {
	return Event{Kind: EventCompleted, JobID: jobID, MediaID: mediaID}
}

// FailedEvent builds the event for a terminal failure
func FailedEvent(jobID, errMsg string) Event {
	return Event{Kind: EventFailed, JobID: jobID, Error: errMsg}
}

// CancelledEvent builds the event for a user-initiated abort
func CancelledEvent(jobID string) Event {
	return Event{Kind: EventCancelled, JobID: jobID}
}
