package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SavePlaylist stores ids under name, replacing any playlist of that name.
func (d *Database) SavePlaylist(ctx context.Context, name string, ids []string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_playlist", start, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		err = errors.New("playlist name is empty")
		return err
	}
	if ids == nil {
		ids = []string{}
	}

	var encoded []byte
	encoded, err = json.Marshal(ids)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO playlists (name, ids, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET ids = excluded.ids, updated_at = excluded.updated_at
	`, name, string(encoded), time.Now().UnixMilli())
	return err
}

// GetPlaylist returns the playlist stored under name.
func (d *Database) GetPlaylist(ctx context.Context, name string) (Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_playlist", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var p Playlist
	p, err = scanPlaylist(d.db.QueryRowContext(ctx,
		"SELECT name, ids, updated_at FROM playlists WHERE name = ?", strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("playlist %q: %w", name, ErrNotFound)
	}
	return p, err
}

// ListPlaylists returns all playlists ordered by name.
func (d *Database) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_playlists", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT name, ids, updated_at FROM playlists ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playlists := []Playlist{}
	for rows.Next() {
		var p Playlist
		if p, err = scanPlaylist(rows); err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	err = rows.Err()
	return playlists, err
}

// DeletePlaylist removes the playlist stored under name.
func (d *Database) DeletePlaylist(ctx context.Context, name string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_playlist", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, "DELETE FROM playlists WHERE name = ?", strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("playlist %q: %w", name, ErrNotFound)
	}
	return err
}

func scanPlaylist(s rowScanner) (Playlist, error) {
	var p Playlist
	var ids string
	if err := s.Scan(&p.Name, &ids, &p.UpdatedAt); err != nil {
		return Playlist{}, err
	}
	if err := json.Unmarshal([]byte(ids), &p.IDs); err != nil {
		return Playlist{}, fmt.Errorf("playlist %q: %w", p.Name, err)
	}
	if p.IDs == nil {
		p.IDs = []string{}
	}
	return p, nil
}
