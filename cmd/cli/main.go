package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/tunevault-go/internal/domain"
	"github.com/yourusername/tunevault-go/pkg/client"
	"github.com/yourusername/tunevault-go/pkg/reconciler"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "tunevault",
		Short: "TuneVault CLI - personal media library downloader",
		Long:  `A command-line interface for managing audio downloads into your local media library.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(watchCmd)

	batchCmd.Flags().StringSlice("select", nil, "Restrict to these playlist entry ids")
	batchCmd.Flags().Bool("collection", false, "Create a destination collection")
	batchCmd.Flags().String("collection-name", "", "Collection name (defaults to playlist title)")
	previewCmd.Flags().Bool("playlist", false, "Expand as a playlist")
}

func newClient() *client.Client {
	return client.New(serverURL)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Start a single download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		job, err := newClient().AddJob(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}
		fmt.Printf("Download started\n")
		fmt.Printf("ID: %s\n", job.ID)
		fmt.Printf("Status: %s\n", job.Status)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [playlist-url]",
	Short: "Download a playlist as independent jobs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		selected, _ := cmd.Flags().GetStringSlice("select")
		createCollection, _ := cmd.Flags().GetBool("collection")
		collectionName, _ := cmd.Flags().GetString("collection-name")

		result, err := newClient().AddBatch(cmd.Context(), client.BatchRequest{
			URL:              args[0],
			SelectedIDs:      selected,
			CreateCollection: createCollection,
			CollectionName:   collectionName,
		})
		if err != nil {
			fail(err)
		}

		fmt.Printf("Batch started: %s\n", result.PlaylistTitle)
		fmt.Printf("Jobs: %d  Skipped (already in library): %d\n", len(result.Jobs), result.Skipped)
		if result.CreatedCollectionID != "" {
			fmt.Printf("Collection: %s\n", result.CreatedCollectionID)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all download jobs",
	Run: func(cmd *cobra.Command, args []string) {
		jobs, err := newClient().ListJobs(cmd.Context())
		if err != nil {
			fail(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tCREATED")
		for _, job := range jobs {
			title := job.Title
			if title == "" {
				title = job.SourceURL
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n",
				truncate(job.ID, 8),
				truncate(title, 40),
				job.Status,
				job.ProgressPercent,
				humanize.Time(job.CreatedAt))
		}
		w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one download job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		job, err := newClient().GetJob(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}

		fmt.Printf("ID:       %s\n", job.ID)
		fmt.Printf("URL:      %s\n", job.SourceURL)
		fmt.Printf("Title:    %s\n", job.Title)
		fmt.Printf("Status:   %s\n", job.Status)
		fmt.Printf("Progress: %d%%\n", job.ProgressPercent)
		if job.Speed != "" {
			fmt.Printf("Speed:    %s  ETA: %s\n", job.Speed, job.ETA)
		}
		if job.MediaID != "" {
			fmt.Printf("Media:    %s\n", job.MediaID)
		}
		if job.ErrorMessage != "" {
			fmt.Printf("Error:    %s (retryable: %v)\n", job.ErrorMessage, job.Retryable)
		}
		fmt.Printf("Created:  %s\n", humanize.Time(job.CreatedAt))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := newClient().GetStats(cmd.Context())
		if err != nil {
			fail(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Total:\t%d\n", stats.Total)
		fmt.Fprintf(w, "Pending:\t%d\n", stats.Pending)
		fmt.Fprintf(w, "Downloading:\t%d\n", stats.Downloading)
		fmt.Fprintf(w, "Processing:\t%d\n", stats.Processing)
		fmt.Fprintf(w, "Completed:\t%d\n", stats.Completed)
		fmt.Fprintf(w, "Failed:\t%d\n", stats.Failed)
		fmt.Fprintf(w, "Cancelled:\t%d\n", stats.Cancelled)
		w.Flush()
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().CancelJob(cmd.Context(), args[0]); err != nil {
			fail(err)
		}
		fmt.Println("Cancellation requested")
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		job, err := newClient().RetryJob(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}
		fmt.Printf("Retry queued, status: %s\n", job.Status)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a finished job record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().DeleteJob(cmd.Context(), args[0]); err != nil {
			fail(err)
		}
		fmt.Println("Job deleted")
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [url]",
	Short: "Resolve metadata without downloading",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asPlaylist, _ := cmd.Flags().GetBool("playlist")
		c := newClient()

		if !asPlaylist {
			preview, err := c.VideoPreview(cmd.Context(), args[0])
			if err != nil {
				fail(err)
			}
			fmt.Printf("%s (%s)\n", preview.Title, formatDuration(preview.DurationSeconds))
			return
		}

		preview, err := c.PlaylistPreview(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s by %s, %d entries\n\n", preview.Title, preview.Channel, len(preview.Entries))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tTITLE\tDURATION")
		for i, entry := range preview.Entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				i+1, entry.ID, truncate(entry.Title, 50), formatDuration(entry.DurationSeconds))
		}
		w.Flush()
	},
}

var collectionCmd = &cobra.Command{
	Use:   "collection [id]",
	Short: "List a collection in playlist order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		media, err := newClient().GetCollection(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTITLE\tARTIST\tADDED")
		for i, m := range media {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				i+1, truncate(m.Title, 45), m.Artist, humanize.Time(m.CreatedAt))
		}
		w.Flush()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow job progress in real time",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := watch(ctx, newClient()); err != nil && ctx.Err() == nil {
			fail(err)
		}
	},
}

// watch merges the event stream onto a snapshot mirror and prints each
// change. An event for an unknown job forces a fresh snapshot.
func watch(ctx context.Context, c *client.Client) error {
	events, err := c.SubscribeEvents(ctx)
	if err != nil {
		return err
	}

	jobs, err := c.ListJobs(ctx)
	if err != nil {
		return err
	}
	mirror := reconciler.NewMirror()
	mirror.ApplySnapshot(jobs)

	fmt.Printf("Watching %d jobs, Ctrl-C to stop\n", mirror.Len())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed, re-run watch to reconnect")
			}
			if !mirror.Apply(event) {
				jobs, err := c.ListJobs(ctx)
				if err != nil {
					return err
				}
				mirror.ApplySnapshot(jobs)
				mirror.Apply(event)
			}
			printEvent(mirror, event)
		}
	}
}

func printEvent(mirror *reconciler.Mirror, event domain.Event) {
	view, _ := mirror.Get(event.JobID)
	id := truncate(event.JobID, 8)

	switch event.Kind {
	case domain.EventStarted:
		fmt.Printf("[%s] started   %s\n", id, view.Title)
	case domain.EventProgress:
		line := fmt.Sprintf("[%s] progress  %d%%", id, view.ProgressPercent)
		if view.Speed != "" {
			line += fmt.Sprintf(" at %s ETA %s", view.Speed, view.ETA)
		}
		fmt.Println(line)
	case domain.EventCompleted:
		fmt.Printf("[%s] completed %s -> media %s\n", id, view.Title, view.MediaID)
	case domain.EventFailed:
		fmt.Printf("[%s] failed    %s: %s\n", id, view.Title, view.Error)
	case domain.EventCancelled:
		fmt.Printf("[%s] cancelled %s\n", id, view.Title)
	}
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
