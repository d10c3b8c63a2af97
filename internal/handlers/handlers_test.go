package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-library/internal/database"
	"media-library/internal/history"
	"media-library/internal/indexer"
	"media-library/internal/library"
	"media-library/internal/pipeline"
	"media-library/internal/player"
	"media-library/internal/playlist"
	"media-library/internal/previewcache"
)

type stubProbe struct{}

func (stubProbe) Duration(ctx context.Context, path string) (*float64, error) {
	d := 42.0
	return &d, nil
}

func (stubProbe) PrimaryFrame(ctx context.Context, path string) ([]byte, error) {
	return []byte("thumb:" + filepath.Base(path)), nil
}

func (stubProbe) TimelineFrames(ctx context.Context, path string, count int) ([][]byte, error) {
	return [][]byte{[]byte("frame0"), []byte("frame1")}, nil
}

type testServer struct {
	router *mux.Router
	h      *Handlers
	db     *database.Database
	ids    map[string]string // path -> record ID
}

// setupServer indexes a library of three videos and returns a router over
// it. When synced is false the sync pass is skipped.
func setupServer(t *testing.T, synced bool) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("video"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	cache := previewcache.New(10)
	idx := indexer.New(db, indexer.NewFSEnumerator(dir), dir)
	pipe := pipeline.New(db, stubProbe{}, cache, nil, pipeline.Config{LibraryDir: dir})
	lib := library.New(db, history.New(db, 0), cache)
	h := New(db, idx, pipe, lib, player.New(lib))

	ts := &testServer{router: mux.NewRouter(), h: h, db: db, ids: map[string]string{}}
	h.RegisterRoutes(ts.router, true)

	if synced {
		if _, err := idx.Sync(ctx); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		recs, err := db.AllRecords(ctx)
		if err != nil {
			t.Fatalf("AllRecords failed: %v", err)
		}
		for _, r := range recs {
			ts.ids[r.Path] = r.ID
		}
	}
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	unsynced := setupServer(t, false)
	if rec := unsynced.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before sync = %d, want 503", rec.Code)
	}
	if rec := unsynced.do(t, http.MethodGet, "/livez", ""); rec.Code != http.StatusOK {
		t.Errorf("livez = %d, want 200", rec.Code)
	}
	if rec := unsynced.do(t, http.MethodHead, "/livez", ""); rec.Body.Len() != 0 {
		t.Errorf("HEAD livez body = %q, want empty", rec.Body.String())
	}

	ts := setupServer(t, true)
	if rec := ts.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz after sync = %d, want 200", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}
	health := decode[HealthResponse](t, rec)
	if health.Status != statusHealthy || health.TotalRecords != 3 {
		t.Errorf("health = %+v, want healthy with 3 records", health)
	}
}

func TestVersionAndMetrics(t *testing.T) {
	ts := setupServer(t, false)
	if rec := ts.do(t, http.MethodGet, "/api/version", ""); rec.Code != http.StatusOK {
		t.Errorf("version = %d, want 200", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d, want 200", rec.Code)
	}
}

func TestListRecords(t *testing.T) {
	ts := setupServer(t, true)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantPaths []string
	}{
		{"all", "", http.StatusOK, []string{"a.mp4", "b.mp4", "c.mp4"}},
		{"second page", "?page=2&pageSize=2", http.StatusOK, []string{"c.mp4"}},
		{"page past the end", "?page=4611686018427387904&pageSize=4", http.StatusOK, nil},
		{"bad page", "?page=zero", http.StatusBadRequest, nil},
		{"negative size", "?pageSize=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/records"+tt.query, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[RecordsResponse](t, rec)
			if resp.Total != 3 {
				t.Errorf("Total = %d, want 3", resp.Total)
			}
			var paths []string
			for _, r := range resp.Records {
				paths = append(paths, r.Path)
			}
			if strings.Join(paths, ",") != strings.Join(tt.wantPaths, ",") {
				t.Errorf("paths = %v, want %v", paths, tt.wantPaths)
			}
		})
	}
}

func TestGetRecord(t *testing.T) {
	ts := setupServer(t, true)

	rec := ts.do(t, http.MethodGet, "/api/records/"+ts.ids["a.mp4"], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[database.Record](t, rec); got.Path != "a.mp4" {
		t.Errorf("Path = %q, want a.mp4", got.Path)
	}

	if rec := ts.do(t, http.MethodGet, "/api/records/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rec.Code)
	}
}

func TestEditUndoRedo(t *testing.T) {
	ts := setupServer(t, true)
	id := ts.ids["a.mp4"]

	rec := ts.do(t, http.MethodPatch, "/api/records/"+id, `{"rating": 4, "addTags": ["cats"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d: %s", rec.Code, rec.Body.String())
	}
	edited := decode[database.Record](t, rec)
	if edited.Rating != 4 || len(edited.Tags) != 1 || edited.Tags[0] != "cats" {
		t.Errorf("edited = %+v, want rating 4 and tag cats", edited)
	}

	rec = ts.do(t, http.MethodPost, "/api/history/undo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("undo status = %d", rec.Code)
	}
	if state := decode[HistoryResponse](t, rec); state.CanUndo || !state.CanRedo {
		t.Errorf("history after undo = %+v", state)
	}
	if got := decode[database.Record](t, ts.do(t, http.MethodGet, "/api/records/"+id, "")); got.Rating != 0 {
		t.Errorf("rating after undo = %d, want 0", got.Rating)
	}

	ts.do(t, http.MethodPost, "/api/history/redo", "")
	if got := decode[database.Record](t, ts.do(t, http.MethodGet, "/api/records/"+id, "")); got.Rating != 4 {
		t.Errorf("rating after redo = %d, want 4", got.Rating)
	}

	// Empty stacks are not errors.
	ts.do(t, http.MethodPost, "/api/history/redo", "")
	if rec := ts.do(t, http.MethodPost, "/api/history/redo", ""); rec.Code != http.StatusOK {
		t.Errorf("redo on empty stack = %d, want 200", rec.Code)
	}
}

func TestEditRejectsBadInput(t *testing.T) {
	ts := setupServer(t, true)
	id := ts.ids["a.mp4"]

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty patch", "/api/records/" + id, `{}`, http.StatusBadRequest},
		{"negative rating", "/api/records/" + id, `{"rating": -1}`, http.StatusBadRequest},
		{"unknown field", "/api/records/" + id, `{"stars": 3}`, http.StatusBadRequest},
		{"no body", "/api/records/" + id, "", http.StatusBadRequest},
		{"unknown record", "/api/records/nope", `{"rating": 1}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodPatch, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBatchEditFollowsFilter(t *testing.T) {
	ts := setupServer(t, true)

	if rec := ts.do(t, http.MethodPut, "/api/filter", `{"query": "b.mp4"}`); rec.Code != http.StatusOK {
		t.Fatalf("set filter status = %d", rec.Code)
	}
	rec := ts.do(t, http.MethodPatch, "/api/records", `{"hearted": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch edit status = %d", rec.Code)
	}
	if got := decode[map[string]int](t, rec); got["changed"] != 1 {
		t.Errorf("changed = %d, want 1", got["changed"])
	}

	b, err := ts.db.GetRecord(context.Background(), ts.ids["b.mp4"])
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	a, err := ts.db.GetRecord(context.Background(), ts.ids["a.mp4"])
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if !b.Hearted || a.Hearted {
		t.Errorf("hearted a=%v b=%v, want only b", a.Hearted, b.Hearted)
	}
}

func TestSetFilterValidation(t *testing.T) {
	ts := setupServer(t, false)

	tests := []struct {
		body string
		want int
	}{
		{`{"sortField": "rating", "sortOrder": "desc"}`, http.StatusOK},
		{`{"sortField": "color"}`, http.StatusBadRequest},
		{`{"sortOrder": "sideways"}`, http.StatusBadRequest},
		{`{"pageSize": -5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := ts.do(t, http.MethodPut, "/api/filter", tt.body); rec.Code != tt.want {
			t.Errorf("PUT /api/filter %s = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}

	got := decode[library.Filter](t, ts.do(t, http.MethodGet, "/api/filter", ""))
	if got.SortField != library.SortByRating {
		t.Errorf("SortField = %q, want rating", got.SortField)
	}
}

func TestTags(t *testing.T) {
	ts := setupServer(t, true)
	ts.do(t, http.MethodPatch, "/api/records/"+ts.ids["a.mp4"], `{"tags": ["x", "y"]}`)
	ts.do(t, http.MethodPatch, "/api/records/"+ts.ids["b.mp4"], `{"tags": ["x"]}`)

	tags := decode[[]library.TagCount](t, ts.do(t, http.MethodGet, "/api/tags", ""))
	want := []library.TagCount{{Tag: "x", Count: 2}, {Tag: "y", Count: 1}}
	if fmt.Sprint(tags) != fmt.Sprint(want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestPreviews(t *testing.T) {
	ts := setupServer(t, true)
	id := ts.ids["a.mp4"]

	if rec := ts.do(t, http.MethodGet, "/api/records/"+id+"/thumbnail", ""); rec.Code != http.StatusNotFound {
		t.Errorf("thumbnail before processing = %d, want 404", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/records/"+id+"/regenerate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/records/"+id+"/thumbnail", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "thumb:a.mp4" {
		t.Errorf("thumbnail = %d %q, want 200 thumb:a.mp4", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}

	rec = ts.do(t, http.MethodGet, "/api/records/"+id+"/timeline", "")
	if got := decode[map[string]any](t, rec); got["frames"] != float64(2) {
		t.Errorf("timeline frames = %v, want 2", got["frames"])
	}
	if rec := ts.do(t, http.MethodGet, "/api/records/"+id+"/timeline/1", ""); rec.Body.String() != "frame1" {
		t.Errorf("frame 1 = %q, want frame1", rec.Body.String())
	}
	if rec := ts.do(t, http.MethodGet, "/api/records/"+id+"/timeline/7", ""); rec.Code != http.StatusNotFound {
		t.Errorf("frame 7 = %d, want 404", rec.Code)
	}
}

func TestPlaylists(t *testing.T) {
	ts := setupServer(t, true)
	a, b := ts.ids["a.mp4"], ts.ids["b.mp4"]

	rec := ts.do(t, http.MethodPut, "/api/playlists/favs", fmt.Sprintf(`["%s", "unknown", "%s"]`, b, a))
	if rec.Code != http.StatusOK {
		t.Fatalf("put playlist = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec); got["kept"] != float64(2) || got["dropped"] != float64(1) {
		t.Errorf("put playlist = %v, want kept 2 dropped 1", got)
	}

	pl := decode[database.Playlist](t, ts.do(t, http.MethodGet, "/api/playlists/favs", ""))
	if len(pl.IDs) != 2 || pl.IDs[0] != b || pl.IDs[1] != a {
		t.Errorf("playlist IDs = %v, want [%s %s]", pl.IDs, b, a)
	}

	if rec := ts.do(t, http.MethodPut, "/api/playlists/bad", `{"ids": []}`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed playlist = %d, want 400", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/playlists/bad", ""); rec.Code != http.StatusNotFound {
		t.Errorf("malformed playlist was stored: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/playlists/favs/wpl", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "b.mp4") {
		t.Fatalf("wpl export = %d %q", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodPost, "/api/playlists/copy/wpl", rec.Body.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("wpl import = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec); got["name"] != "copy" {
		t.Errorf("imported name = %v, want copy", got["name"])
	}

	lists := decode[[]database.Playlist](t, ts.do(t, http.MethodGet, "/api/playlists", ""))
	if len(lists) != 2 {
		t.Errorf("playlists = %d, want 2", len(lists))
	}

	if rec := ts.do(t, http.MethodDelete, "/api/playlists/favs", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/playlists/favs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestExports(t *testing.T) {
	ts := setupServer(t, true)

	doc := decode[database.ExportDocument](t, ts.do(t, http.MethodGet, "/api/export", ""))
	if len(doc.Records) != 3 {
		t.Errorf("export records = %d, want 3", len(doc.Records))
	}

	ts.do(t, http.MethodPut, "/api/filter", `{"query": "c.mp4"}`)
	sel := decode[[]database.SelectionEntry](t, ts.do(t, http.MethodGet, "/api/export/selection", ""))
	if len(sel) != 1 || sel[0].Path != "c.mp4" {
		t.Errorf("selection = %+v, want only c.mp4", sel)
	}
}

func TestPlayerActions(t *testing.T) {
	ts := setupServer(t, true)
	id := ts.ids["a.mp4"]

	steps := []struct {
		action string
		body   string
		code   int
		state  player.State
	}{
		{"play", "", http.StatusConflict, ""},
		{"load", `{"id": "` + id + `"}`, http.StatusOK, player.StateLoading},
		{"ready", `{"duration": 100}`, http.StatusOK, player.StateReady},
		{"play", "", http.StatusOK, player.StatePlaying},
		{"advance", `{"position": 30}`, http.StatusOK, player.StatePlaying},
		{"pause", "", http.StatusOK, player.StatePaused},
		{"rewind", "", http.StatusNotFound, ""},
		{"stop", "", http.StatusOK, player.StateIdle},
	}

	for _, s := range steps {
		rec := ts.do(t, http.MethodPost, "/api/player/"+s.action, s.body)
		if rec.Code != s.code {
			t.Fatalf("%s = %d, want %d: %s", s.action, rec.Code, s.code, rec.Body.String())
		}
		if s.state != "" {
			if got := decode[player.Status](t, rec); got.State != s.state {
				t.Errorf("%s state = %s, want %s", s.action, got.State, s.state)
			}
		}
	}

	got, err := ts.db.GetRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.TimesOpened != 1 {
		t.Errorf("TimesOpened = %d, want 1", got.TimesOpened)
	}
	if got.SavedPosition == nil || *got.SavedPosition != 30 {
		t.Errorf("SavedPosition = %v, want 30", got.SavedPosition)
	}
	if !got.Seen {
		t.Error("saved position past the threshold should mark the record seen")
	}

	if rec := ts.do(t, http.MethodPost, "/api/player/load", `{"id": "nope"}`); rec.Code != http.StatusNotFound {
		t.Errorf("load unknown = %d, want 404", rec.Code)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJobs(t *testing.T) {
	ts := setupServer(t, false)

	if rec := ts.do(t, http.MethodPost, "/api/sync", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("sync = %d, want 202", rec.Code)
	}
	waitFor(t, "sync", func() bool { return !ts.h.indexer.LastSyncTime().IsZero() })

	rec := ts.do(t, http.MethodPost, "/api/process", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("process = %d, want 202", rec.Code)
	}
	if got := decode[map[string]any](t, rec); got["total"] != float64(3) {
		t.Errorf("process total = %v, want 3", got["total"])
	}
	waitFor(t, "processing", func() bool {
		return !ts.h.pipeline.IsRunning() && ts.h.pipeline.GetProgress().Processed == 3
	})

	thumbs, err := ts.db.ThumbnailIDs(context.Background())
	if err != nil {
		t.Fatalf("ThumbnailIDs failed: %v", err)
	}
	if len(thumbs) != 3 {
		t.Errorf("thumbnails = %d, want 3", len(thumbs))
	}

	if rec := ts.do(t, http.MethodPost, "/api/durations", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("durations = %d, want 202", rec.Code)
	}
	waitFor(t, "duration scan", func() bool {
		recs, err := ts.db.AllRecords(context.Background())
		if err != nil {
			return false
		}
		for _, r := range recs {
			if r.Duration == nil {
				return false
			}
		}
		return !ts.h.pipeline.IsRunning()
	})

	status := decode[StatusResponse](t, ts.do(t, http.MethodGet, "/api/status", ""))
	if status.LastSynced == nil || status.Pipeline.Running {
		t.Errorf("status = %+v, want synced and idle", status)
	}

	if rec := ts.do(t, http.MethodPost, "/api/process/cancel", ""); rec.Code != http.StatusOK {
		t.Errorf("cancel while idle = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", database.ErrNotFound), http.StatusNotFound},
		{library.ErrInvalidPatch, http.StatusBadRequest},
		{playlist.ErrInvalidPlaylist, http.StatusBadRequest},
		{player.ErrInvalidTransition, http.StatusConflict},
		{pipeline.ErrAlreadyRunning, http.StatusConflict},
		{indexer.ErrSyncInProgress, http.StatusConflict},
		{pipeline.ErrNoPreview, http.StatusNotFound},
		{database.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
