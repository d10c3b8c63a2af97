package database

import (
	"slices"
	"sort"
	"time"
)

// Record is the persisted metadata for one library item.
type Record struct {
	ID            string   `json:"id"`
	Path          string   `json:"path"`
	Size          int64    `json:"size"`
	LastModified  int64    `json:"lastModified"` // unix milliseconds
	Duration      *float64 `json:"duration,omitempty"`
	Rating        int      `json:"rating"`
	Seen          bool     `json:"seen"`
	Tags          []string `json:"tags"`
	Hearted       bool     `json:"hearted"`
	Hidden        bool     `json:"hidden"`
	Deleted       bool     `json:"deleted"`
	NotFound      bool     `json:"notFound"`
	Title         *string  `json:"title,omitempty"`
	SavedPosition *float64 `json:"savedPosition,omitempty"`
	TimesOpened   int      `json:"timesOpened"`
	DateAdded     int64    `json:"dateAdded"` // unix milliseconds
	Playable      bool     `json:"playable"`
	Description   string   `json:"description,omitempty"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	c.Tags = append(make([]string, 0, len(r.Tags)), r.Tags...)
	c.Duration = cloneFloat(r.Duration)
	c.SavedPosition = cloneFloat(r.SavedPosition)
	if r.Title != nil {
		title := *r.Title
		c.Title = &title
	}
	return c
}

// Equal reports whether two records hold the same values. A nil and an
// empty tag slice compare equal.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.Path == o.Path &&
		r.Size == o.Size &&
		r.LastModified == o.LastModified &&
		equalFloat(r.Duration, o.Duration) &&
		r.Rating == o.Rating &&
		r.Seen == o.Seen &&
		slices.Equal(r.Tags, o.Tags) &&
		r.Hearted == o.Hearted &&
		r.Hidden == o.Hidden &&
		r.Deleted == o.Deleted &&
		r.NotFound == o.NotFound &&
		equalString(r.Title, o.Title) &&
		equalFloat(r.SavedPosition, o.SavedPosition) &&
		r.TimesOpened == o.TimesOpened &&
		r.DateAdded == o.DateAdded &&
		r.Playable == o.Playable &&
		r.Description == o.Description
}

// DisplayTitle returns the user-assigned title, falling back to the path.
func (r Record) DisplayTitle() string {
	if r.Title != nil && *r.Title != "" {
		return *r.Title
	}
	return r.Path
}

// NormalizeTags returns tags sorted, deduplicated and without empty strings.
// Tags are case-sensitive. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// SelectionEntry is the reduced, shareable view of a record.
type SelectionEntry struct {
	ID      string   `json:"id"`
	Path    string   `json:"path"`
	Rating  int      `json:"rating"`
	Tags    []string `json:"tags"`
	Seen    bool     `json:"seen"`
	Hearted bool     `json:"hearted"`
	Hidden  bool     `json:"hidden"`
	Title   *string  `json:"title,omitempty"`
}

// Selection converts records to their reduced export form.
func Selection(records []Record) []SelectionEntry {
	out := make([]SelectionEntry, 0, len(records))
	for _, r := range records {
		c := r.Clone()
		out = append(out, SelectionEntry{
			ID:      c.ID,
			Path:    c.Path,
			Rating:  c.Rating,
			Tags:    c.Tags,
			Seen:    c.Seen,
			Hearted: c.Hearted,
			Hidden:  c.Hidden,
			Title:   c.Title,
		})
	}
	return out
}

// ArtifactInfo describes a stored preview artifact without its payload.
type ArtifactInfo struct {
	ID        string `json:"id"`
	Frames    int    `json:"frames"`
	Bytes     int64  `json:"bytes"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Playlist is a named, ordered list of record identifiers.
type Playlist struct {
	Name      string   `json:"name"`
	IDs       []string `json:"ids"`
	UpdatedAt int64    `json:"updatedAt"`
}

// ExportDocument is the full-store export: one array per table and no
// binary payloads.
type ExportDocument struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	Records    []Record       `json:"records"`
	Thumbnails []ArtifactInfo `json:"thumbnails"`
	Timelines  []ArtifactInfo `json:"timelines"`
	Playlists  []Playlist     `json:"playlists"`
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
