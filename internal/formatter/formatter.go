// package formatter renders library listings and migration logs as CSV, JSON, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/itx/internal/models"
)

// Supported formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Library is the JSON shape of an inspected library file.
type Library struct {
	Tracks    []models.TrackRecord     `json:"tracks"`
	Playlists []models.PlaylistSummary `json:"playlists"`
}

// TracksToCSV writes tracks with columns: ID, Name, Artist, Album, Track Number
func TracksToCSV(tracks []models.TrackRecord) ([]byte, error) {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, t.Artist, t.Album, strconv.Itoa(t.TrackNumber)})
	}
	return writeCSV([]string{"ID", "Name", "Artist", "Album", "Track Number"}, rows)
}

// TracksToText lists tracks as numbered "Artist - Name" lines.
func TracksToText(tracks []models.TrackRecord) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))
	for i, t := range tracks {
		fmt.Fprintf(&buf, "%d. %s", i+1, t.Label())
		if t.Album != "" {
			fmt.Fprintf(&buf, " (%s)", t.Album)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// TracksToMarkdown renders a titled Markdown track list.
func TracksToMarkdown(title string, tracks []models.TrackRecord) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))
	buf.WriteString("## Tracks\n\n")
	for i, t := range tracks {
		albumPart := ""
		if t.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", t.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s\n", i+1, t.Label(), albumPart)
	}
	return buf.Bytes()
}

// PlaylistsToText lists playlist names with their item counts.
func PlaylistsToText(playlists []models.PlaylistSummary) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Playlists: %d\n\n", len(playlists))
	for _, p := range playlists {
		fmt.Fprintf(&buf, "- %s (%d items)\n", p.Name, p.Items)
	}
	return buf.Bytes()
}

// LibraryToJSON renders tracks and playlists as indented JSON.
func LibraryToJSON(lib Library) ([]byte, error) {
	if lib.Tracks == nil {
		lib.Tracks = []models.TrackRecord{}
	}
	if lib.Playlists == nil {
		lib.Playlists = []models.PlaylistSummary{}
	}
	return json.MarshalIndent(lib, "", "  ")
}

// FormatLibrary renders lib in the named format. CSV covers tracks only.
func FormatLibrary(lib Library, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return LibraryToJSON(lib)
	case FormatCSV:
		return TracksToCSV(lib.Tracks)
	case FormatMarkdown, "md":
		return TracksToMarkdown("iTunes Library", lib.Tracks), nil
	case FormatText, "txt", "":
		out := TracksToText(lib.Tracks)
		if len(lib.Playlists) > 0 {
			out = append(append(out, '\n'), PlaylistsToText(lib.Playlists)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// EntriesToCSV writes a migration log with columns: Kind, Text, Score, Artwork
func EntriesToCSV(entries []models.LogEntry) ([]byte, error) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		score := ""
		if e.Score != nil {
			score = strconv.FormatFloat(*e.Score, 'f', 2, 64)
		}
		rows = append(rows, []string{string(e.Kind), e.Text, score, e.Pic})
	}
	return writeCSV([]string{"Kind", "Text", "Score", "Artwork"}, rows)
}

// EntryLine renders one entry as a single plain-text line.
func EntryLine(e models.LogEntry) string {
	var b strings.Builder
	if e.Total > 0 {
		fmt.Fprintf(&b, "[%d/%d] ", e.Step, e.Total)
	}
	b.WriteString(e.Text)
	if e.Score != nil {
		fmt.Fprintf(&b, " (score %.2f)", *e.Score)
	}
	return b.String()
}

// EntriesToText renders a migration log one line per entry.
func EntriesToText(entries []models.LogEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(EntryLine(e))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FormatEntries renders a migration log in the named format.
func FormatEntries(entries []models.LogEntry, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		if entries == nil {
			entries = []models.LogEntry{}
		}
		return json.MarshalIndent(entries, "", "  ")
	case FormatCSV:
		return EntriesToCSV(entries)
	case FormatText, "txt", "":
		return EntriesToText(entries), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// WriteReport writes a migration log to path, choosing the format from the
// file extension (.json, .csv, anything else is text).
func WriteReport(entries []models.LogEntry, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != FormatJSON && format != FormatCSV {
		format = FormatText
	}

	data, err := FormatEntries(entries, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
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
