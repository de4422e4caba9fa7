// Package client is a small Go client for the tunevault HTTP API. The CLI
// uses it; it also serves any other frontend that wants the snapshot plus
// event-stream contract handled for it.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"github.com/yourusername/tunevault-go/internal/app"
	"github.com/yourusername/tunevault-go/internal/domain"
)

// Client talks to a running tunevault server
type Client struct {
	http    *resty.Client
	baseURL string
}

// New creates a client for the given base URL, e.g. http://localhost:8080
func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, baseURL: baseURL}
}

type apiError struct {
	Error string `json:"error"`
}

func decodeError(resp *resty.Response) error {
	var apiErr apiError
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s", apiErr.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status())
}

// AddJob starts a single download
func (c *Client) AddJob(ctx context.Context, sourceURL string) (*domain.Job, error) {
	var job domain.Job
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"url": sourceURL}).
		SetResult(&job).
		Post("/api/v1/jobs")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &job, nil
}

// BatchRequest mirrors the server's playlist batch options
type BatchRequest struct {
	URL              string   `json:"url"`
	SelectedIDs      []string `json:"selected_ids,omitempty"`
	CreateCollection bool     `json:"create_collection,omitempty"`
	CollectionName   string   `json:"collection_name,omitempty"`
}

// AddBatch starts one job per selected playlist entry
func (c *Client) AddBatch(ctx context.Context, req BatchRequest) (*app.BatchResult, error) {
	var result app.BatchResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/api/v1/jobs/batch")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &result, nil
}

// ListJobs fetches the authoritative job snapshot
func (c *Client) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	var jobs []*domain.Job
	resp, err := c.http.R().SetContext(ctx).SetResult(&jobs).Get("/api/v1/jobs")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return jobs, nil
}

// GetJob fetches one job record
func (c *Client) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	resp, err := c.http.R().SetContext(ctx).SetResult(&job).Get("/api/v1/jobs/" + id)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &job, nil
}

// GetStats fetches job counts by status
func (c *Client) GetStats(ctx context.Context) (*domain.JobStats, error) {
	var stats domain.JobStats
	resp, err := c.http.R().SetContext(ctx).SetResult(&stats).Get("/api/v1/jobs/stats")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &stats, nil
}

// CancelJob requests cancellation of a job
func (c *Client) CancelJob(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Post("/api/v1/jobs/" + id + "/cancel")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// RetryJob starts a fresh attempt for a failed or cancelled job
func (c *Client) RetryJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	resp, err := c.http.R().SetContext(ctx).SetResult(&job).Post("/api/v1/jobs/" + id + "/retry")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &job, nil
}

// DeleteJob removes a terminal job record
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/api/v1/jobs/" + id)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// VideoPreview resolves single-video metadata without downloading
func (c *Client) VideoPreview(ctx context.Context, sourceURL string) (*domain.VideoPreview, error) {
	var preview domain.VideoPreview
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("url", sourceURL).
		SetResult(&preview).
		Get("/api/v1/preview/video")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &preview, nil
}

// PlaylistPreview expands a playlist URL into its ordered entries
func (c *Client) PlaylistPreview(ctx context.Context, sourceURL string) (*domain.PlaylistPreview, error) {
	var preview domain.PlaylistPreview
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("url", sourceURL).
		SetResult(&preview).
		Get("/api/v1/preview/playlist")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &preview, nil
}

// GetCollection lists a collection's media in playlist order
func (c *Client) GetCollection(ctx context.Context, id string) ([]*domain.Media, error) {
	var media []*domain.Media
	resp, err := c.http.R().SetContext(ctx).SetResult(&media).Get("/api/v1/collections/" + id)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return media, nil
}

// SubscribeEvents connects to the event stream and delivers decoded events
// until the context is cancelled or the connection drops. The returned
// channel is closed on exit; callers should resync from ListJobs after a
// drop before resubscribing.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan domain.Event, error) {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/api/v1/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	events := make(chan domain.Event, 64)
	go func() {
		defer close(events)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var event domain.Event
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
