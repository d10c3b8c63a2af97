package library

import (
	"errors"
	"fmt"
	"strings"

	"media-library/internal/database"
)

// SeenThreshold is the saved position, in seconds, above which a record
// counts as seen.
const SeenThreshold = 5.0

// ErrInvalidPatch is returned for edits that cannot be applied.
var ErrInvalidPatch = errors.New("invalid patch")

// Patch is a partial edit. Nil fields are left unchanged.
type Patch struct {
	Rating        *int     `json:"rating,omitempty"`
	Seen          *bool    `json:"seen,omitempty"`
	Hearted       *bool    `json:"hearted,omitempty"`
	Hidden        *bool    `json:"hidden,omitempty"`
	Deleted       *bool    `json:"deleted,omitempty"`
	Title         *string  `json:"title,omitempty"`
	Description   *string  `json:"description,omitempty"`
	SavedPosition *float64 `json:"savedPosition,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	AddTags       []string `json:"addTags,omitempty"`
	RemoveTags    []string `json:"removeTags,omitempty"`
}

// Validate rejects empty and out-of-range patches.
func (p Patch) Validate() error {
	if p.isEmpty() {
		return fmt.Errorf("%w: no fields to change", ErrInvalidPatch)
	}
	if p.Rating != nil && *p.Rating < 0 {
		return fmt.Errorf("%w: rating must not be negative", ErrInvalidPatch)
	}
	if p.SavedPosition != nil && *p.SavedPosition < 0 {
		return fmt.Errorf("%w: saved position must not be negative", ErrInvalidPatch)
	}
	if p.Tags != nil && (p.AddTags != nil || p.RemoveTags != nil) {
		return fmt.Errorf("%w: tags cannot be replaced and amended at once", ErrInvalidPatch)
	}
	return nil
}

func (p Patch) isEmpty() bool {
	return p.Rating == nil && p.Seen == nil && p.Hearted == nil &&
		p.Hidden == nil && p.Deleted == nil && p.Title == nil &&
		p.Description == nil && p.SavedPosition == nil &&
		p.Tags == nil && p.AddTags == nil && p.RemoveTags == nil
}

// Apply returns rec with the patch applied. A saved position above
// SeenThreshold also marks the record seen. An empty title clears it.
func (p Patch) Apply(rec database.Record) database.Record {
	out := rec.Clone()
	if p.Rating != nil {
		out.Rating = *p.Rating
	}
	if p.Seen != nil {
		out.Seen = *p.Seen
	}
	if p.Hearted != nil {
		out.Hearted = *p.Hearted
	}
	if p.Hidden != nil {
		out.Hidden = *p.Hidden
	}
	if p.Deleted != nil {
		out.Deleted = *p.Deleted
	}
	if p.Title != nil {
		if t := strings.TrimSpace(*p.Title); t != "" {
			out.Title = &t
		} else {
			out.Title = nil
		}
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.SavedPosition != nil {
		pos := *p.SavedPosition
		out.SavedPosition = &pos
		if pos > SeenThreshold {
			out.Seen = true
		}
	}

	if p.Tags != nil {
		out.Tags = database.NormalizeTags(p.Tags)
	}
	if p.AddTags != nil || p.RemoveTags != nil {
		remove := make(map[string]bool, len(p.RemoveTags))
		for _, t := range p.RemoveTags {
			remove[t] = true
		}
		var tags []string
		for _, t := range append(out.Tags, p.AddTags...) {
			if !remove[t] {
				tags = append(tags, t)
			}
		}
		out.Tags = database.NormalizeTags(tags)
	}
	return out
}
