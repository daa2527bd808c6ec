// Package library extracts tracks and playlists from an iTunes library export.
package library

import (
	"strconv"

	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/plist"
	"github.com/desertthunder/itx/internal/shared"
)

// Document is a parsed library file.
type Document struct {
	root *plist.Node
}

// Parse reads an XML (or binary) property list and locates its top-level dictionary.
//
// Malformed XML wraps [shared.ErrParse]; a document without a top-level
// dictionary is a [plist.StructureError].
func Parse(data []byte) (*Document, error) {
	tree, err := plist.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	root, err := plist.Root(tree)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// TrackTable maps track ids to records and remembers the order in which ids
// first appeared in the library.
type TrackTable struct {
	order []int
	byID  map[int]models.TrackRecord
}

func newTrackTable() *TrackTable {
	return &TrackTable{byID: make(map[int]models.TrackRecord)}
}

func (t *TrackTable) put(r models.TrackRecord) {
	if _, seen := t.byID[r.ID]; !seen {
		t.order = append(t.order, r.ID)
	}
	t.byID[r.ID] = r
}

// Len is the number of distinct track ids.
func (t *TrackTable) Len() int { return len(t.order) }

// Get returns the record for id.
func (t *TrackTable) Get(id int) (models.TrackRecord, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// IDs returns the track ids in first-seen order.
func (t *TrackTable) IDs() []int {
	return append([]int(nil), t.order...)
}

// Records returns the records in first-seen order.
func (t *TrackTable) Records() []models.TrackRecord {
	out := make([]models.TrackRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// ParseTracks builds the track table from the "Tracks" dictionary.
//
// A library without "Tracks" yields an empty table. Keys that are not integers
// are skipped, and a repeated id keeps its first position with the last
// record's fields.
func ParseTracks(doc *Document) (*TrackTable, error) {
	table := newTrackTable()

	tracks, ok := plist.Lookup(doc.root, "Tracks")
	if !ok {
		return table, nil
	}

	pairs, err := plist.Pairs(tracks)
	if err != nil {
		return nil, err
	}

	for _, p := range pairs {
		id, err := strconv.Atoi(p.Key)
		if err != nil {
			continue
		}
		table.put(newTrackRecord(id, plist.Flatten(p.Value)))
	}

	return table, nil
}

func newTrackRecord(id int, props map[string]*plist.Node) models.TrackRecord {
	number, err := props["Track Number"].Int()
	if err != nil || number < 0 {
		number = 0
	}
	return models.TrackRecord{
		ID:          id,
		Name:        shared.NormalizeTitle(props["Name"].String()),
		Artist:      shared.NormalizeArtist(props["Artist"].String()),
		Album:       shared.NormalizeAlbum(props["Album"].String()),
		TrackNumber: number,
	}
}

// ParsePlaylistName returns the name of the first playlist in the library.
func ParsePlaylistName(doc *Document) (string, bool) {
	playlists, err := playlistDicts(doc)
	if err != nil || len(playlists) == 0 {
		return "", false
	}
	name, ok := plist.Lookup(playlists[0], "Name")
	if !ok || name.String() == "" {
		return "", false
	}
	return name.String(), true
}

// ParsePlaylistOrder returns the "Track ID" values of the named playlist in
// document order, or of the first playlist when name is empty or unknown.
//
// Ids that do not resolve to a track are kept. A library without playlists
// yields an empty sequence.
func ParsePlaylistOrder(doc *Document, name string) ([]int, error) {
	_, order, _, err := SelectPlaylist(doc, name)
	return order, err
}

// SelectPlaylist resolves name to a playlist once and returns that playlist's
// own name with its "Track ID" order. An empty or unknown name selects the
// first playlist. ok is false when the library has no playlists.
func SelectPlaylist(doc *Document, name string) (selectedName string, order []int, ok bool, err error) {
	order = []int{}

	playlists, err := playlistDicts(doc)
	if err != nil {
		return "", nil, false, err
	}
	selected := selectPlaylist(playlists, name)
	if selected == nil {
		return "", order, false, nil
	}
	if n, found := plist.Lookup(selected, "Name"); found {
		selectedName = n.String()
	}

	items, found := plist.Lookup(selected, "Playlist Items")
	if !found {
		return selectedName, order, true, nil
	}
	entries, err := plist.Elements(items, "dict")
	if err != nil {
		return selectedName, nil, true, err
	}

	for _, item := range entries {
		v, found := plist.Lookup(item, "Track ID")
		if !found {
			continue
		}
		id, err := v.Int()
		if err != nil {
			continue
		}
		order = append(order, id)
	}
	return selectedName, order, true, nil
}

// ListPlaylists summarizes every playlist in the library.
func ListPlaylists(doc *Document) ([]models.PlaylistSummary, error) {
	playlists, err := playlistDicts(doc)
	if err != nil {
		return nil, err
	}

	out := make([]models.PlaylistSummary, 0, len(playlists))
	for _, p := range playlists {
		summary := models.PlaylistSummary{}
		if name, ok := plist.Lookup(p, "Name"); ok {
			summary.Name = name.String()
		}
		if items, ok := plist.Lookup(p, "Playlist Items"); ok {
			if entries, err := plist.Elements(items, "dict"); err == nil {
				summary.Items = len(entries)
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

func playlistDicts(doc *Document) ([]*plist.Node, error) {
	playlists, ok := plist.Lookup(doc.root, "Playlists")
	if !ok {
		return nil, nil
	}
	return plist.Elements(playlists, "dict")
}

func selectPlaylist(playlists []*plist.Node, name string) *plist.Node {
	if len(playlists) == 0 {
		return nil
	}
	if name != "" {
		for _, p := range playlists {
			if n, ok := plist.Lookup(p, "Name"); ok && n.String() == name {
				return p
			}
		}
	}
	return playlists[0]
}
