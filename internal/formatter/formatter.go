// package formatter renders sync outcomes and playlist snapshots for CLI output (text, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
)

// fmtRounding trims duration noise from human-readable output.
const fmtRounding = time.Millisecond

// ResultToText renders one cycle's outcome as a short human-readable summary.
func ResultToText(result *tasks.SyncResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User:     %s\n", result.SpotifyID))
	buf.WriteString(fmt.Sprintf("Status:   %s\n", result.Status))
	if result.PlaylistID != "" {
		buf.WriteString(fmt.Sprintf("Playlist: %s\n", result.PlaylistID))
	}
	buf.WriteString(fmt.Sprintf("Added:    %d\n", result.Added))
	buf.WriteString(fmt.Sprintf("Removed:  %d\n", result.Removed))
	if len(result.Rejected) > 0 {
		buf.WriteString(fmt.Sprintf("Rejected: %d (%v)\n", len(result.Rejected), result.Rejected))
	}
	if result.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:  %s\n", result.Message))
	}
	buf.WriteString(fmt.Sprintf("Duration: %s\n", result.Duration.Round(fmtRounding)))

	return buf.Bytes()
}

// ReportToText renders a sweep report as a per-user table with a totals line.
func ReportToText(report *tasks.SweepReport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%-24s %-16s %6s %8s %9s\n", "USER", "STATUS", "ADDED", "REMOVED", "REJECTED"))
	for _, result := range report.Results {
		buf.WriteString(fmt.Sprintf("%-24s %-16s %6d %8d %9d\n",
			result.SpotifyID, result.Status, result.Added, result.Removed, len(result.Rejected)))
	}

	buf.WriteString(fmt.Sprintf("\n%d users: %d synced, %d skipped, %d failed\n",
		report.TotalUsers, report.Succeeded, report.Skipped, report.Failed))

	return buf.Bytes()
}

// ReportToCSV renders a sweep report with one row per user.
func ReportToCSV(report *tasks.SweepReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"User", "Status", "Added", "Removed", "Rejected", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, result := range report.Results {
		record := []string{
			result.SpotifyID,
			result.Status,
			strconv.Itoa(result.Added),
			strconv.Itoa(result.Removed),
			strconv.Itoa(len(result.Rejected)),
			result.Message,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RunsToText renders recorded sync runs, most recent first, as a table.
func RunsToText(runs []*models.SyncRun) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%-20s %-16s %6s %8s %9s  %s\n", "AT", "STATUS", "ADDED", "REMOVED", "REJECTED", "MESSAGE"))
	for _, run := range runs {
		buf.WriteString(fmt.Sprintf("%-20s %-16s %6d %8d %9d  %s\n",
			run.CreatedAt().Format("2006-01-02 15:04:05"),
			run.Status(), run.Added(), run.Removed(), run.Rejected(), run.Message()))
	}

	return buf.Bytes()
}

// UsersToText renders the registered user roster as a table.
func UsersToText(users []*models.User) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%-24s %-24s %s\n", "SPOTIFY ID", "DISPLAY NAME", "TOKEN EXPIRES"))
	for _, user := range users {
		expires := "-"
		if at := user.TokenExpiresAt(); at != nil {
			expires = at.Format("2006-01-02 15:04:05")
		}
		buf.WriteString(fmt.Sprintf("%-24s %-24s %s\n", user.SpotifyID(), user.DisplayName(), expires))
	}

	return buf.Bytes()
}

// TracksToText renders a playlist snapshot as a numbered track listing.
func TracksToText(name string, tracks []models.Track) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", name))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(tracks)))

	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.Artist, track.Title))
	}

	return buf.Bytes()
}

// TracksToCSV converts a playlist snapshot to CSV with columns: ID, Title, Artist, Album, Duration
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// TracksToMarkdown converts a playlist snapshot to a Markdown track listing.
func TracksToMarkdown(name string, tracks []models.Track) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", name))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(tracks)))

	for i, track := range tracks {
		duration := shared.FormatDuration(track.Duration)
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, track.Artist, track.Title, albumPart, duration))
	}

	return buf.Bytes()
}

// ToJSON renders any value as indented JSON.
func ToJSON(v any) ([]byte, error) {
	return shared.MarshalJSON(v, true)
}

// WriteSnapshot writes a playlist snapshot to a file in the given format
// (text, csv, markdown, json), defaulting the filename from the playlist name.
func WriteSnapshot(name string, tracks []models.Track, format, filepath string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "csv":
		data, err = TracksToCSV(tracks)
		ext = "csv"
	case "markdown", "md":
		data = TracksToMarkdown(name, tracks)
		ext = "md"
	case "json":
		data, err = ToJSON(tracks)
		ext = "json"
	case "text", "txt", "":
		data = TracksToText(name, tracks)
		ext = "txt"
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render snapshot: %w", err)
	}

	if filepath == "" {
		filepath = fmt.Sprintf("%s_snapshot.%s", name, ext)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	return filepath, nil
}
