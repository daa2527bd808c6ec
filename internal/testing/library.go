package testing

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/desertthunder/itx/internal/models"
)

// Playlist is a named list of track ids rendered by [BuildLibrary].
type Playlist struct {
	Name string
	IDs  []int
}

// NumberedTracks returns n tracks named "Song i" by "Artist i" on "Album i",
// with ids starting at 1.
func NumberedTracks(n int) []models.TrackRecord {
	tracks := make([]models.TrackRecord, n)
	for i := range tracks {
		tracks[i] = models.TrackRecord{
			ID:          i + 1,
			Name:        fmt.Sprintf("Song %d", i+1),
			Artist:      fmt.Sprintf("Artist %d", i+1),
			Album:       fmt.Sprintf("Album %d", i+1),
			TrackNumber: 1,
		}
	}
	return tracks
}

// BuildLibrary renders tracks and playlists as an iTunes XML library.
func BuildLibrary(tracks []models.TrackRecord, playlists ...Playlist) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<plist version="1.0"><dict>` + "\n")
	b.WriteString("<key>Tracks</key><dict>\n")
	for _, t := range tracks {
		fmt.Fprintf(&b, "<key>%d</key><dict>", t.ID)
		fmt.Fprintf(&b, "<key>Track ID</key><integer>%d</integer>", t.ID)
		writeString(&b, "Name", t.Name)
		writeString(&b, "Artist", t.Artist)
		writeString(&b, "Album", t.Album)
		if t.TrackNumber > 0 {
			fmt.Fprintf(&b, "<key>Track Number</key><integer>%d</integer>", t.TrackNumber)
		}
		b.WriteString("</dict>\n")
	}
	b.WriteString("</dict>\n")

	if len(playlists) > 0 {
		b.WriteString("<key>Playlists</key><array>\n")
		for _, p := range playlists {
			b.WriteString("<dict>")
			writeString(&b, "Name", p.Name)
			b.WriteString("<key>Playlist Items</key><array>")
			for _, id := range p.IDs {
				fmt.Fprintf(&b, "<dict><key>Track ID</key><integer>%d</integer></dict>", id)
			}
			b.WriteString("</array></dict>\n")
		}
		b.WriteString("</array>\n")
	}

	b.WriteString("</dict></plist>\n")
	return b.Bytes()
}

func writeString(b *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<key>%s</key><string>", key)
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString("</string>")
}
