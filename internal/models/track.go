package models

import "fmt"

// TrackRecord is one library track after normalization.
//
// Records are built once by the library parser and never modified.
type TrackRecord struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	TrackNumber int    `json:"track_number"`
}

// Label is the "Artist - Name" form used in progress messages.
func (t TrackRecord) Label() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Name)
}

// PlaylistSummary describes one playlist of a library file.
type PlaylistSummary struct {
	Name  string `json:"name"`
	Items int    `json:"items"`
}
