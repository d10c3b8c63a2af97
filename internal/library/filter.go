package library

import (
	"cmp"
	"slices"
	"strings"

	"media-library/internal/database"
)

type SortField string
type SortOrder string

const (
	SortByPath   SortField = "path"
	SortByDate   SortField = "date"
	SortBySize   SortField = "size"
	SortByAdded  SortField = "added"
	SortByRating SortField = "rating"
	SortByOpened SortField = "opened"
	SortAsc      SortOrder = "asc"
	SortDesc     SortOrder = "desc"
)

// Filter selects the visible set. The zero value shows every present,
// unhidden, undeleted record ordered by path.
type Filter struct {
	Query       string    `json:"query,omitempty"`
	Tag         string    `json:"tag,omitempty"`
	MinRating   int       `json:"minRating,omitempty"`
	Seen        *bool     `json:"seen,omitempty"`
	Hearted     *bool     `json:"hearted,omitempty"`
	ShowHidden  bool      `json:"showHidden,omitempty"`
	ShowDeleted bool      `json:"showDeleted,omitempty"`
	ShowMissing bool      `json:"showMissing,omitempty"`
	SortField   SortField `json:"sortField,omitempty"`
	SortOrder   SortOrder `json:"sortOrder,omitempty"`
	Page        int       `json:"page,omitempty"`
	PageSize    int       `json:"pageSize,omitempty"`
}

// Match reports whether rec passes the filter's predicates.
func (f Filter) Match(rec database.Record) bool {
	if rec.Hidden && !f.ShowHidden {
		return false
	}
	if rec.Deleted && !f.ShowDeleted {
		return false
	}
	if rec.NotFound && !f.ShowMissing {
		return false
	}
	if rec.Rating < f.MinRating {
		return false
	}
	if f.Seen != nil && rec.Seen != *f.Seen {
		return false
	}
	if f.Hearted != nil && rec.Hearted != *f.Hearted {
		return false
	}
	if f.Tag != "" && !slices.Contains(rec.Tags, f.Tag) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hay := strings.ToLower(rec.Path + "\n" + rec.DisplayTitle() + "\n" + strings.Join(rec.Tags, "\n"))
		for _, word := range strings.Fields(q) {
			if !strings.Contains(hay, word) {
				return false
			}
		}
	}
	return true
}

// Apply filters, sorts and pages recs. It returns the page and the number
// of matching records before paging.
func (f Filter) Apply(recs []database.Record) ([]database.Record, int) {
	var out []database.Record
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b database.Record) int {
		c := f.compare(a, b)
		if c == 0 {
			c = cmp.Compare(a.Path, b.Path)
		}
		if f.SortOrder == SortDesc {
			return -c
		}
		return c
	})

	total := len(out)
	if f.PageSize > 0 {
		start, end := pageBounds(f.Page, f.PageSize, total)
		out = out[start:end]
	}
	if out == nil {
		out = []database.Record{}
	}
	return out, total
}

// pageBounds returns the slice bounds of a page of size pageSize (> 0) over
// total items. Pages past the end are empty; huge values cannot overflow.
func pageBounds(page, pageSize, total int) (start, end int) {
	skip := max(page, 1) - 1
	if skip > total/pageSize {
		return total, total
	}
	start = min(skip*pageSize, total)
	return start, start + min(pageSize, total-start)
}

func (f Filter) compare(a, b database.Record) int {
	switch f.SortField {
	case SortByDate:
		return cmp.Compare(a.LastModified, b.LastModified)
	case SortBySize:
		return cmp.Compare(a.Size, b.Size)
	case SortByAdded:
		return cmp.Compare(a.DateAdded, b.DateAdded)
	case SortByRating:
		return cmp.Compare(a.Rating, b.Rating)
	case SortByOpened:
		return cmp.Compare(a.TimesOpened, b.TimesOpened)
	default:
		return 0
	}
}
