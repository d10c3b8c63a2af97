package database

import (
	"context"
	"database/sql"
	"time"

	"media-library/internal/metrics"
)

// Export returns the whole store as one document. Artifact entries describe
// each stored preview without its payload.
func (d *Database) Export(ctx context.Context) (*ExportDocument, error) {
	records, err := d.AllRecords(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}

	thumbs, err := d.artifactInfo(ctx, `
		SELECT record_id, 1, LENGTH(data), updated_at
		FROM thumbnails ORDER BY record_id`)
	if err != nil {
		return nil, err
	}

	timelines, err := d.artifactInfo(ctx, `
		SELECT record_id, COUNT(*), SUM(LENGTH(data)), MAX(updated_at)
		FROM timeline_thumbnails GROUP BY record_id ORDER BY record_id`)
	if err != nil {
		return nil, err
	}

	playlists, err := d.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	version, err := d.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	return &ExportDocument{
		Version:    version,
		ExportedAt: time.Now().UTC(),
		Records:    records,
		Thumbnails: thumbs,
		Timelines:  timelines,
		Playlists:  playlists,
	}, nil
}

func (d *Database) artifactInfo(ctx context.Context, query string) ([]ArtifactInfo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("artifact_info", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := []ArtifactInfo{}
	for rows.Next() {
		var info ArtifactInfo
		if err = rows.Scan(&info.ID, &info.Frames, &info.Bytes, &info.UpdatedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	err = rows.Err()
	return infos, err
}

// LibraryStats summarizes the store for the metrics collector.
func (d *Database) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("library_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var s metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(not_found), 0),
			COALESCE(SUM(hidden), 0),
			COALESCE(SUM(deleted), 0),
			COALESCE(SUM(CASE WHEN playable = 0 THEN 1 ELSE 0 END), 0),
			(SELECT COUNT(*) FROM thumbnails)
		FROM records
	`).Scan(&s.Total, &s.Missing, &s.Hidden, &s.Deleted, &s.Unplayable, &s.Thumbnails)
	return s, err
}
