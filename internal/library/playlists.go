package library

import (
	"context"
	"fmt"
	"io"
	"strings"

	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/playlist"
)

func (l *Library) knownIDs(ctx context.Context) (map[string]database.Record, error) {
	all, err := l.db.AllRecords(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]database.Record, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	return byID, nil
}

// SavePlaylist stores ids under name, dropping identifiers that name no
// record. It returns the number dropped.
func (l *Library) SavePlaylist(ctx context.Context, name string, ids []string) (int, error) {
	known, err := l.knownIDs(ctx)
	if err != nil {
		return 0, err
	}
	kept, dropped := playlist.Known(ids, func(id string) bool {
		_, ok := known[id]
		return ok
	})
	if err := l.db.SavePlaylist(ctx, name, kept); err != nil {
		return 0, err
	}
	if dropped > 0 {
		logging.Info("Playlist %q: dropped %d unknown records", name, dropped)
	}
	return dropped, nil
}

// ImportPlaylist stores a JSON playlist document. Nothing is stored when the
// document is malformed.
func (l *Library) ImportPlaylist(ctx context.Context, name string, data []byte) (kept, dropped int, err error) {
	ids, err := playlist.Parse(data)
	if err != nil {
		return 0, 0, err
	}
	dropped, err = l.SavePlaylist(ctx, name, ids)
	if err != nil {
		return 0, 0, err
	}
	return len(ids) - dropped, dropped, nil
}

// ExportPlaylist renders a stored playlist as JSON.
func (l *Library) ExportPlaylist(ctx context.Context, name string) ([]byte, error) {
	p, err := l.db.GetPlaylist(ctx, name)
	if err != nil {
		return nil, err
	}
	return playlist.Encode(p.IDs)
}

// ImportWPL reads a Windows playlist, maps its sources onto library records
// and stores the result. An empty name uses the playlist's own title. It
// returns the stored name and the sources that matched no record.
func (l *Library) ImportWPL(ctx context.Context, name string, r io.Reader) (string, []string, error) {
	title, sources, err := playlist.ParseWPL(r)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = title
	}
	if strings.TrimSpace(name) == "" {
		return "", nil, fmt.Errorf("%w: playlist has no title", playlist.ErrInvalidPlaylist)
	}

	all, err := l.db.AllRecords(ctx)
	if err != nil {
		return "", nil, err
	}
	paths := make([]string, 0, len(all))
	idByPath := make(map[string]string, len(all))
	for _, rec := range all {
		paths = append(paths, rec.Path)
		idByPath[rec.Path] = rec.ID
	}

	resolved, unresolved := playlist.Resolve(sources, paths)
	ids := make([]string, 0, len(resolved))
	for _, p := range resolved {
		ids = append(ids, idByPath[p])
	}

	if err := l.db.SavePlaylist(ctx, name, ids); err != nil {
		return "", nil, err
	}
	logging.Info("Imported WPL playlist %q: %d items, %d unresolved", name, len(ids), len(unresolved))
	return name, unresolved, nil
}

// ExportWPL writes a stored playlist as a WPL document. Records that no
// longer exist are skipped.
func (l *Library) ExportWPL(ctx context.Context, name string, w io.Writer) error {
	p, err := l.db.GetPlaylist(ctx, name)
	if err != nil {
		return err
	}
	recs, err := l.db.GetRecords(ctx, p.IDs)
	if err != nil {
		return err
	}
	byID := make(map[string]string, len(recs))
	for _, r := range recs {
		byID[r.ID] = r.Path
	}
	var paths []string
	for _, id := range p.IDs {
		if path, ok := byID[id]; ok {
			paths = append(paths, path)
		}
	}
	return playlist.EncodeWPL(w, p.Name, paths)
}

// Playlists lists stored playlists by name.
func (l *Library) Playlists(ctx context.Context) ([]database.Playlist, error) {
	return l.db.ListPlaylists(ctx)
}

// Playlist returns one stored playlist.
func (l *Library) Playlist(ctx context.Context, name string) (database.Playlist, error) {
	return l.db.GetPlaylist(ctx, name)
}

// DeletePlaylist removes a stored playlist.
func (l *Library) DeletePlaylist(ctx context.Context, name string) error {
	return l.db.DeletePlaylist(ctx, name)
}
