package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"media-library/internal/database"
	"media-library/internal/history"
	"media-library/internal/playlist"
	"media-library/internal/previewcache"
)

func setupLibrary(t *testing.T) (*Library, *database.Database) {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, history.New(db, 0), previewcache.New(10)), db
}

func seed(t *testing.T, db *database.Database, recs ...database.Record) {
	t.Helper()
	for i := range recs {
		if recs[i].Tags == nil {
			recs[i].Tags = []string{}
		}
		recs[i].Playable = true
	}
	if err := db.UpsertRecords(context.Background(), recs); err != nil {
		t.Fatalf("UpsertRecords failed: %v", err)
	}
}

func get(t *testing.T, db *database.Database, id string) database.Record {
	t.Helper()
	rec, err := db.GetRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRecord(%s) failed: %v", id, err)
	}
	return rec
}

func intPtr(i int) *int { return &i }
func boolPtr(b bool) *bool { return &b }
func floatPtr(f float64) *float64 { return &f }
func stringPtr(s string) *string { return &s }

func TestBatchEditUndoRedo(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4"}, database.Record{ID: "b", Path: "b.mp4"})

	n, err := lib.BatchEdit(ctx, Patch{Rating: intPtr(5)})
	if err != nil {
		t.Fatalf("BatchEdit failed: %v", err)
	}
	if n != 2 {
		t.Errorf("BatchEdit changed %d, want 2", n)
	}
	if undo, _ := lib.History().Depths(); undo != 1 {
		t.Errorf("undo depth = %d, want one entry for the batch", undo)
	}

	if _, err := lib.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if got := get(t, db, id).Rating; got != 0 {
			t.Errorf("%s rating after undo = %d, want 0", id, got)
		}
	}

	if _, err := lib.Redo(ctx); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if got := get(t, db, id).Rating; got != 5 {
			t.Errorf("%s rating after redo = %d, want 5", id, got)
		}
	}
}

func TestBatchEditOnlyVisible(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db,
		database.Record{ID: "a", Path: "a.mp4", Tags: []string{"x"}},
		database.Record{ID: "b", Path: "b.mp4"},
		database.Record{ID: "h", Path: "h.mp4", Tags: []string{"x"}, Hidden: true},
	)

	lib.SetFilter(Filter{Tag: "x", PageSize: 1})
	n, err := lib.BatchEdit(ctx, Patch{Hearted: boolPtr(true)})
	if err != nil {
		t.Fatalf("BatchEdit failed: %v", err)
	}
	if n != 1 {
		t.Errorf("BatchEdit changed %d, want 1", n)
	}
	if !get(t, db, "a").Hearted || get(t, db, "b").Hearted || get(t, db, "h").Hearted {
		t.Error("batch edit touched records outside the visible set")
	}
}

func TestEditSavedPositionMarksSeen(t *testing.T) {
	tests := []struct {
		pos  float64
		seen bool
	}{
		{2, false},
		{SeenThreshold, false},
		{30, true},
	}
	for _, tt := range tests {
		ctx := context.Background()
		lib, db := setupLibrary(t)
		seed(t, db, database.Record{ID: "a", Path: "a.mp4"})

		got, err := lib.Edit(ctx, "a", Patch{SavedPosition: floatPtr(tt.pos)})
		if err != nil {
			t.Fatalf("Edit failed: %v", err)
		}
		if got.Seen != tt.seen {
			t.Errorf("Seen after position %v = %v, want %v", tt.pos, got.Seen, tt.seen)
		}

		// One undo reverts both the position and the derived flag.
		if _, err := lib.Undo(ctx); err != nil {
			t.Fatalf("Undo failed: %v", err)
		}
		rec := get(t, db, "a")
		if rec.Seen || rec.SavedPosition != nil {
			t.Errorf("record after undo = %+v, want pristine", rec)
		}
		if lib.History().CanUndo() {
			t.Error("derived seen change left a second history entry")
		}
	}
}

func TestEditNoChangeSkipsHistory(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4", Rating: 3})

	if _, err := lib.Edit(ctx, "a", Patch{Rating: intPtr(3)}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if lib.History().CanUndo() {
		t.Error("no-op edit was recorded")
	}
}

func TestEditErrors(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4"})

	if _, err := lib.Edit(ctx, "a", Patch{}); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("empty patch error = %v, want ErrInvalidPatch", err)
	}
	if _, err := lib.Edit(ctx, "a", Patch{Rating: intPtr(-1)}); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("negative rating error = %v, want ErrInvalidPatch", err)
	}
	if _, err := lib.Edit(ctx, "nope", Patch{Rating: intPtr(1)}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("unknown record error = %v, want ErrNotFound", err)
	}
}

func TestPatchApplyTags(t *testing.T) {
	rec := database.Record{ID: "a", Tags: []string{"b", "c"}}
	tests := []struct {
		name  string
		patch Patch
		want  []string
	}{
		{"replace", Patch{Tags: []string{"z", "a", "a", ""}}, []string{"a", "z"}},
		{"add", Patch{AddTags: []string{"a", "c"}}, []string{"a", "b", "c"}},
		{"remove", Patch{RemoveTags: []string{"b"}}, []string{"c"}},
		{"clear", Patch{Tags: []string{}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.patch.Apply(rec)
			if !slices.Equal(got.Tags, tt.want) {
				t.Errorf("Tags = %v, want %v", got.Tags, tt.want)
			}
			if !slices.Equal(rec.Tags, []string{"b", "c"}) {
				t.Errorf("Apply mutated input tags: %v", rec.Tags)
			}
		})
	}
}

func TestPatchApplyTitle(t *testing.T) {
	rec := database.Record{ID: "a", Title: stringPtr("Old")}
	if got := (Patch{Title: stringPtr("  New ")}).Apply(rec); got.Title == nil || *got.Title != "New" {
		t.Errorf("Title = %v, want New", got.Title)
	}
	if got := (Patch{Title: stringPtr("")}).Apply(rec); got.Title != nil {
		t.Errorf("Title = %v, want cleared", *got.Title)
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name                  string
		page, pageSize, total int
		start, end            int
	}{
		{"first page", 1, 2, 5, 0, 2},
		{"last partial page", 3, 2, 5, 4, 5},
		{"past the end", 4, 2, 5, 5, 5},
		{"zero page is first", 0, 2, 5, 0, 2},
		{"huge page", 4611686018427387904, 4, 5, 5, 5},
		{"max page", math.MaxInt, math.MaxInt, 5, 5, 5},
		{"huge page size", 1, math.MaxInt, 5, 0, 5},
		{"empty", 1, 3, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := pageBounds(tt.page, tt.pageSize, tt.total)
			if start != tt.start || end != tt.end {
				t.Errorf("pageBounds(%d, %d, %d) = %d, %d, want %d, %d",
					tt.page, tt.pageSize, tt.total, start, end, tt.start, tt.end)
			}
		})
	}
}

func TestFilterApply(t *testing.T) {
	recs := []database.Record{
		{ID: "1", Path: "b.mp4", Rating: 3, Size: 30, Tags: []string{"cats"}},
		{ID: "2", Path: "a.mp4", Rating: 5, Size: 10},
		{ID: "3", Path: "c.mp4", Hidden: true},
		{ID: "4", Path: "d.mp4", Deleted: true},
		{ID: "5", Path: "e.mp4", NotFound: true},
		{ID: "6", Path: "Holiday/f.mp4", Title: stringPtr("Beach day"), Seen: true},
	}

	ids := func(rs []database.Record) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
		total  int
	}{
		{"default", Filter{}, []string{"6", "2", "1"}, 3},
		{"show all", Filter{ShowHidden: true, ShowDeleted: true, ShowMissing: true}, []string{"6", "2", "1", "3", "4", "5"}, 6},
		{"min rating", Filter{MinRating: 4}, []string{"2"}, 1},
		{"tag", Filter{Tag: "cats"}, []string{"1"}, 1},
		{"query title", Filter{Query: "BEACH"}, []string{"6"}, 1},
		{"query words", Filter{Query: "holiday beach"}, []string{"6"}, 1},
		{"seen", Filter{Seen: boolPtr(false)}, []string{"2", "1"}, 2},
		{"size desc", Filter{SortField: SortBySize, SortOrder: SortDesc}, []string{"1", "2", "6"}, 3},
		{"page 2", Filter{PageSize: 2, Page: 2}, []string{"1"}, 3},
		{"page past end", Filter{PageSize: 2, Page: 5}, nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := tt.filter.Apply(recs)
			if !slices.Equal(ids(got), tt.want) {
				t.Errorf("ids = %v, want %v", ids(got), tt.want)
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
		})
	}
}

func TestSetFilterClearsCache(t *testing.T) {
	lib, _ := setupLibrary(t)
	lib.cache.Set("a", [][]byte{[]byte("f")})
	lib.SetFilter(Filter{MinRating: 1})
	if lib.cache.Len() != 0 {
		t.Errorf("cache Len = %d, want 0", lib.cache.Len())
	}
}

func TestVisiblePageKeepsFilterAndCache(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db,
		database.Record{ID: "a", Path: "a.mp4"},
		database.Record{ID: "b", Path: "b.mp4"},
		database.Record{ID: "c", Path: "c.mp4"},
	)
	lib.cache.Set("a", [][]byte{[]byte("f")})

	page, total, err := lib.VisiblePage(ctx, 2, 2)
	if err != nil {
		t.Fatalf("VisiblePage failed: %v", err)
	}
	if total != 3 || len(page) != 1 || page[0].ID != "c" {
		t.Errorf("VisiblePage = %d records (total %d), want [c] of 3", len(page), total)
	}
	if lib.Filter().PageSize != 0 {
		t.Errorf("stored filter PageSize = %d, want 0", lib.Filter().PageSize)
	}
	if !lib.cache.Contains("a") {
		t.Error("VisiblePage should not clear the cache")
	}
}

func TestUndoInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4"}, database.Record{ID: "b", Path: "b.mp4"})

	if _, err := lib.Edit(ctx, "a", Patch{Rating: intPtr(2)}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	lib.cache.Set("a", [][]byte{[]byte("f")})
	lib.cache.Set("b", [][]byte{[]byte("f")})

	if _, err := lib.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if lib.cache.Contains("a") || !lib.cache.Contains("b") {
		t.Errorf("cache keys = %v, want only b", lib.cache.Keys())
	}
}

func TestOpenedAndPositionSaved(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4"})

	if err := lib.Opened(ctx, "a"); err != nil {
		t.Fatalf("Opened failed: %v", err)
	}
	if err := lib.Opened(ctx, "a"); err != nil {
		t.Fatalf("Opened failed: %v", err)
	}
	if lib.History().CanUndo() {
		t.Error("open counter recorded in history")
	}

	if err := lib.PositionSaved(ctx, "a", 42); err != nil {
		t.Fatalf("PositionSaved failed: %v", err)
	}
	rec := get(t, db, "a")
	if rec.TimesOpened != 2 {
		t.Errorf("TimesOpened = %d, want 2", rec.TimesOpened)
	}
	if rec.SavedPosition == nil || *rec.SavedPosition != 42 || !rec.Seen {
		t.Errorf("record = %+v, want position 42 and seen", rec)
	}
	if lib.History().CanUndo() {
		t.Error("playback position recorded in history")
	}
}

func TestPositionSavedKeepsRedo(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4"})

	rating := 4
	if _, err := lib.Edit(ctx, "a", Patch{Rating: &rating}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if _, err := lib.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if err := lib.PositionSaved(ctx, "a", 12); err != nil {
		t.Fatalf("PositionSaved failed: %v", err)
	}
	if !lib.History().CanRedo() {
		t.Fatal("CanRedo = false after a playback save, want the redo entry kept")
	}
	if _, err := lib.Redo(ctx); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	if got := get(t, db, "a").Rating; got != 4 {
		t.Errorf("Rating after redo = %d, want 4", got)
	}
}

func TestTags(t *testing.T) {
	lib, db := setupLibrary(t)
	seed(t, db,
		database.Record{ID: "a", Path: "a.mp4", Tags: []string{"x", "y"}},
		database.Record{ID: "b", Path: "b.mp4", Tags: []string{"y"}},
		database.Record{ID: "c", Path: "c.mp4", Tags: []string{"z"}, Deleted: true},
	)
	got, err := lib.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	want := []TagCount{{"x", 1}, {"y", 2}}
	if !slices.Equal(got, want) {
		t.Errorf("Tags = %v, want %v", got, want)
	}
}

func TestSelection(t *testing.T) {
	lib, db := setupLibrary(t)
	seed(t, db,
		database.Record{ID: "a", Path: "a.mp4", Rating: 2},
		database.Record{ID: "h", Path: "h.mp4", Hidden: true},
	)
	entries, err := lib.Selection(context.Background())
	if err != nil {
		t.Fatalf("Selection failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a" || entries[0].Rating != 2 {
		t.Errorf("Selection = %+v, want only a", entries)
	}
	if _, err := json.Marshal(entries); err != nil {
		t.Errorf("Marshal failed: %v", err)
	}
}

func TestImportPlaylist(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db, database.Record{ID: "a", Path: "a.mp4"}, database.Record{ID: "b", Path: "b.mp4"})

	kept, dropped, err := lib.ImportPlaylist(ctx, "mix", []byte(`["b","ghost","a"]`))
	if err != nil {
		t.Fatalf("ImportPlaylist failed: %v", err)
	}
	if kept != 2 || dropped != 1 {
		t.Errorf("kept, dropped = %d, %d, want 2, 1", kept, dropped)
	}

	data, err := lib.ExportPlaylist(ctx, "mix")
	if err != nil {
		t.Fatalf("ExportPlaylist failed: %v", err)
	}
	ids, _ := playlist.Parse(data)
	if !slices.Equal(ids, []string{"b", "a"}) {
		t.Errorf("exported ids = %v, want [b a]", ids)
	}
}

func TestImportPlaylistMalformedStoresNothing(t *testing.T) {
	ctx := context.Background()
	lib, _ := setupLibrary(t)

	if _, _, err := lib.ImportPlaylist(ctx, "bad", []byte(`["a", 3]`)); !errors.Is(err, playlist.ErrInvalidPlaylist) {
		t.Errorf("ImportPlaylist error = %v, want ErrInvalidPlaylist", err)
	}
	if _, err := lib.Playlist(ctx, "bad"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Playlist error = %v, want ErrNotFound", err)
	}
}

func TestWPLRoundTrip(t *testing.T) {
	ctx := context.Background()
	lib, db := setupLibrary(t)
	seed(t, db,
		database.Record{ID: "a", Path: "Trips/day1.mp4"},
		database.Record{ID: "b", Path: "Trips/day2.mp4"},
	)

	doc := `<?wpl version="1.0"?><smil><head><title>Trip</title></head><body><seq>
<media src="C:\Videos\Trips\day2.mp4"/>
<media src="C:\Videos\Trips\day1.mp4"/>
<media src="C:\Videos\lost.mp4"/>
</seq></body></smil>`

	name, unresolved, err := lib.ImportWPL(ctx, "", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportWPL failed: %v", err)
	}
	if name != "Trip" || len(unresolved) != 1 {
		t.Errorf("ImportWPL = %q, %v, want Trip with one unresolved", name, unresolved)
	}
	p, err := lib.Playlist(ctx, "Trip")
	if err != nil {
		t.Fatalf("Playlist failed: %v", err)
	}
	if !slices.Equal(p.IDs, []string{"b", "a"}) {
		t.Errorf("IDs = %v, want [b a]", p.IDs)
	}

	var buf bytes.Buffer
	if err := lib.ExportWPL(ctx, "Trip", &buf); err != nil {
		t.Fatalf("ExportWPL failed: %v", err)
	}
	if !strings.Contains(buf.String(), `Trips\day2.mp4`) {
		t.Errorf("exported WPL missing source: %s", buf.String())
	}
}
