package models

import "math"

// EntryKind classifies a [LogEntry].
type EntryKind string

const (
	EntryReceived        EntryKind = "received"
	EntryParsed          EntryKind = "parsed"
	EntryPlaylistCreated EntryKind = "playlist_created"
	EntryMatched         EntryKind = "matched"
	EntryUnmatched       EntryKind = "unmatched"
	EntryFlushed         EntryKind = "flushed"
	EntryInfo            EntryKind = "info"
	EntryCompleted       EntryKind = "completed"
	EntryFailed          EntryKind = "failed"
)

// LogEntry is one progress event of a migration run.
//
// Text, Pic and Score form the payload clients render; Kind lets streaming
// clients recognize the terminal entry. Step and Total are set on per-track
// entries.
type LogEntry struct {
	Text  string    `json:"text"`
	Pic   string    `json:"pic,omitempty"`
	Score *float64  `json:"score,omitempty"`
	Kind  EntryKind `json:"kind"`
	Step  int       `json:"step,omitempty"`
	Total int       `json:"total,omitempty"`
}

// NewEntry creates a [LogEntry] of the given kind.
func NewEntry(kind EntryKind, text string) LogEntry {
	return LogEntry{Kind: kind, Text: text}
}

// WithScore attaches a confidence score rounded to two decimals.
func (e LogEntry) WithScore(score float64) LogEntry {
	s := math.Round(score*100) / 100
	e.Score = &s
	return e
}

// WithPic attaches an artwork URL.
func (e LogEntry) WithPic(url string) LogEntry {
	e.Pic = url
	return e
}

// WithProgress attaches the 1-based position of a track within the run.
func (e LogEntry) WithProgress(step, total int) LogEntry {
	e.Step, e.Total = step, total
	return e
}

// Terminal reports whether the entry ends a run.
func (e LogEntry) Terminal() bool {
	return e.Kind == EntryCompleted || e.Kind == EntryFailed
}
