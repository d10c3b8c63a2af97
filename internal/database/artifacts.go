package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutThumbnail stores (or replaces) the primary thumbnail of a record.
func (d *Database) PutThumbnail(ctx context.Context, id string, data []byte) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("put_thumbnail", start, err) }()

	if len(data) == 0 {
		err = fmt.Errorf("thumbnail for %s is empty", id)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO thumbnails (record_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, id, data, time.Now().UnixMilli())
	return err
}

// GetThumbnail returns the primary thumbnail of a record.
func (d *Database) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumbnail", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var data []byte
	err = d.db.QueryRowContext(ctx, "SELECT data FROM thumbnails WHERE record_id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("thumbnail %s: %w", id, ErrNotFound)
	}
	return data, err
}

// DeleteThumbnail removes the primary thumbnail of a record, if any.
func (d *Database) DeleteThumbnail(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_thumbnail", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE record_id = ?", id)
	return err
}

// ThumbnailIDs returns the set of record identifiers that have a primary thumbnail.
func (d *Database) ThumbnailIDs(ctx context.Context) (map[string]bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("thumbnail_ids", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT record_id FROM thumbnails")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	err = rows.Err()
	return ids, err
}

// PutTimeline replaces the timeline preview of a record with frames, in order.
func (d *Database) PutTimeline(ctx context.Context, id string, frames [][]byte) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("put_timeline", start, err) }()

	if len(frames) == 0 {
		err = fmt.Errorf("timeline for %s has no frames", id)
		return err
	}

	now := time.Now().UnixMilli()
	err = d.inTx(ctx, func(tx *sql.Tx) error {
		if _, execErr := tx.ExecContext(ctx, "DELETE FROM timeline_thumbnails WHERE record_id = ?", id); execErr != nil {
			return execErr
		}
		for i, frame := range frames {
			if _, execErr := tx.ExecContext(ctx,
				"INSERT INTO timeline_thumbnails (record_id, position, data, updated_at) VALUES (?, ?, ?, ?)",
				id, i, frame, now,
			); execErr != nil {
				return fmt.Errorf("frame %d: %w", i, execErr)
			}
		}
		return nil
	})
	return err
}

// GetTimeline returns the ordered timeline preview frames of a record.
func (d *Database) GetTimeline(ctx context.Context, id string) ([][]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_timeline", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx,
		"SELECT data FROM timeline_thumbnails WHERE record_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames [][]byte
	for rows.Next() {
		var data []byte
		if err = rows.Scan(&data); err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		err = fmt.Errorf("timeline %s: %w", id, ErrNotFound)
		return nil, err
	}
	return frames, nil
}

// DeleteTimeline removes the timeline preview of a record, if any.
func (d *Database) DeleteTimeline(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_timeline", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, "DELETE FROM timeline_thumbnails WHERE record_id = ?", id)
	return err
}
