package tasks

import (
	"fmt"

	"github.com/desertthunder/itx/internal/models"
)

func receivedEntry(filename string) models.LogEntry {
	return models.NewEntry(models.EntryReceived, fmt.Sprintf("Received file: %s", filename))
}

func parsedEntry(n int) models.LogEntry {
	return models.NewEntry(models.EntryParsed, fmt.Sprintf("Parsed %d tracks", n))
}

func playlistCreatedEntry(name, id string) models.LogEntry {
	return models.NewEntry(models.EntryPlaylistCreated, fmt.Sprintf("Created playlist %q (ID: %s)", name, id))
}

func matchedEntry(step, total int, t models.TrackRecord, res models.MatchResult) models.LogEntry {
	return models.NewEntry(models.EntryMatched, "Matched "+t.Label()).
		WithScore(res.Score).
		WithPic(res.Artwork).
		WithProgress(step, total)
}

// unmatchedEntry carries the best candidate's score when one was found.
func unmatchedEntry(step, total int, t models.TrackRecord, res models.MatchResult) models.LogEntry {
	e := models.NewEntry(models.EntryUnmatched, "No match for "+t.Label()).WithProgress(step, total)
	if res.Found() {
		e = e.WithScore(res.Score)
	}
	return e
}

func flushedEntry(n int) models.LogEntry {
	return models.NewEntry(models.EntryFlushed, fmt.Sprintf("Added %d tracks to playlist", n))
}

func nothingToAddEntry() models.LogEntry {
	return models.NewEntry(models.EntryInfo, "No tracks to add")
}

func completedEntry(matched, total int) models.LogEntry {
	return models.NewEntry(models.EntryCompleted, fmt.Sprintf("Migration complete: %d/%d tracks matched", matched, total))
}

func failedEntry(format string, args ...any) models.LogEntry {
	return models.NewEntry(models.EntryFailed, fmt.Sprintf(format, args...))
}

func cancelledEntry() models.LogEntry {
	return models.NewEntry(models.EntryFailed, "Migration cancelled")
}
