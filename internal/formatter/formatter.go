// package formatter renders parties, queues and search results as plain text, Markdown or CSV for the CLI
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

// ParseFormat accepts text, txt, markdown, md and csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, markdown or csv)", shared.ErrInvalidArgument, s)
	}
}

// Render formats a party snapshot. CSV output contains only the queue.
func Render(snap *party.Snapshot, format Format) ([]byte, error) {
	switch format {
	case Markdown:
		return SnapshotToMarkdown(snap)
	case CSV:
		return QueueToCSV(snap.Queue)
	default:
		return SnapshotToText(snap)
	}
}

// QueueToCSV converts a queue to CSV with columns: Position, Status, Title, Artist, Album, Duration, Spotify ID, Added By
func QueueToCSV(queue []*models.PartyTrack) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Status", "Title", "Artist", "Album", "Duration", "Spotify ID", "Added By"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range queue {
		record := []string{
			strconv.Itoa(track.Position),
			string(track.Status),
			track.Title,
			track.Artist,
			track.Album,
			shared.FormatDuration(track.DurationMS),
			track.SpotifyID,
			track.AddedBy,
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

// SnapshotToMarkdown renders the party header, now playing, participants and queue.
func SnapshotToMarkdown(snap *party.Snapshot) ([]byte, error) {
	if snap == nil || snap.Party == nil {
		return nil, fmt.Errorf("%w: empty snapshot", shared.ErrInvalidInput)
	}
	p := snap.Party

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# %s\n\n", p.Title))
	if p.Description != "" {
		buf.WriteString(fmt.Sprintf("%s\n\n", p.Description))
	}

	buf.WriteString(fmt.Sprintf("**Status**: %s\n", p.Status))
	buf.WriteString(fmt.Sprintf("**Invite code**: `%s`\n", p.Code))
	buf.WriteString(fmt.Sprintf("**Host**: %s\n", p.HostID))
	if when := timeline(p); when != "" {
		buf.WriteString(fmt.Sprintf("**%s**\n", when))
	}
	buf.WriteString("\n")

	if line := nowPlaying(snap.Sync); line != "" {
		buf.WriteString("## Now Playing\n\n")
		buf.WriteString(line + "\n\n")
	}

	buf.WriteString(fmt.Sprintf("## Participants (%d)\n\n", len(snap.Participants)))
	for _, pp := range snap.Participants {
		buf.WriteString(fmt.Sprintf("- %s (%s)\n", pp.UserID, pp.Role))
	}
	buf.WriteString("\n")

	buf.WriteString("## Queue\n\n")
	if len(snap.Queue) == 0 {
		buf.WriteString("_empty_\n")
	}
	for i, track := range snap.Queue {
		marker := ""
		if track.Status == models.TrackPlaying {
			marker = " ▶"
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]%s\n", i+1, track.Artist, track.Title, shared.FormatDuration(track.DurationMS), marker))
	}

	return buf.Bytes(), nil
}

// SnapshotToText is the plain text variant of [SnapshotToMarkdown].
func SnapshotToText(snap *party.Snapshot) ([]byte, error) {
	if snap == nil || snap.Party == nil {
		return nil, fmt.Errorf("%w: empty snapshot", shared.ErrInvalidInput)
	}
	p := snap.Party

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Party: %s\n", p.Title))
	buf.WriteString(fmt.Sprintf("Status: %s\n", p.Status))
	buf.WriteString(fmt.Sprintf("Code: %s\n", p.Code))
	buf.WriteString(fmt.Sprintf("Host: %s\n", p.HostID))
	if when := timeline(p); when != "" {
		buf.WriteString(when + "\n")
	}
	if line := nowPlaying(snap.Sync); line != "" {
		buf.WriteString("Now playing: " + line + "\n")
	}
	buf.WriteString(fmt.Sprintf("Participants: %d\n\n", len(snap.Participants)))

	for i, track := range snap.Queue {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%s)\n", i+1, track.Artist, track.Title, track.Status))
	}

	return buf.Bytes(), nil
}

// PartiesTable renders a party list as aligned columns.
func PartiesTable(parties []*models.ListeningParty) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tSTATUS\tTITLE\tHOST\tCREATED")
	for _, p := range parties {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Code, p.Status, shared.Truncate(p.Title, 40), p.HostID, p.CreatedAt.Format(time.DateTime))
	}
	w.Flush()
	return buf.Bytes()
}

// TracksTable renders search results with the catalog ID first so it can be pasted into a queue request.
func TracksTable(tracks []models.SpotifyTrack) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tARTISTS\tDURATION")
	for _, t := range tracks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.ID, shared.Truncate(t.Name, 40), shared.Truncate(t.ArtistLine(), 30), shared.FormatDuration(t.DurationMS))
	}
	w.Flush()
	return buf.Bytes()
}

// WriteExport renders snap and writes it to path, or to stdout when path is empty or "-".
func WriteExport(snap *party.Snapshot, format Format, path string) error {
	data, err := Render(snap, format)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func timeline(p *models.ListeningParty) string {
	switch {
	case p.EndedAt != nil:
		return "Ended " + p.EndedAt.Format(time.DateTime)
	case p.StartedAt != nil:
		return "Started " + p.StartedAt.Format(time.DateTime)
	case p.ScheduledFor != nil:
		return "Scheduled for " + p.ScheduledFor.Format(time.DateTime)
	default:
		return ""
	}
}

func nowPlaying(s *party.Sync) string {
	if s == nil || s.Track == nil {
		return ""
	}
	state := "paused"
	if s.Playback != nil && s.Playback.IsPlaying {
		state = "playing"
	}
	return fmt.Sprintf("%s - %s [%s / %s, %s]",
		s.Track.Artist, s.Track.Title,
		shared.FormatDuration(s.PositionMS), shared.FormatDuration(s.Track.DurationMS), state)
}
