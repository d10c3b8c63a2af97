package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-library/internal/logging"
)

const recordColumns = `id, path, size, last_modified, duration, rating, seen, tags,
	hearted, hidden, deleted, not_found, title, saved_position, times_opened,
	date_added, playable, description`

type rowScanner interface {
	Scan(dest ...any) error
}

// rawRecord mirrors a records row, nullable where older schema versions
// lacked the column.
type rawRecord struct {
	id            string
	path          string
	size          int64
	lastModified  int64
	duration      sql.NullFloat64
	rating        int
	seen          bool
	tags          string
	hearted       sql.NullBool
	hidden        bool
	deleted       bool
	notFound      bool
	title         sql.NullString
	savedPosition sql.NullFloat64
	timesOpened   sql.NullInt64
	dateAdded     sql.NullInt64
	playable      bool
	description   string
}

func scanRecord(s rowScanner) (Record, error) {
	var raw rawRecord
	err := s.Scan(
		&raw.id, &raw.path, &raw.size, &raw.lastModified, &raw.duration,
		&raw.rating, &raw.seen, &raw.tags, &raw.hearted, &raw.hidden,
		&raw.deleted, &raw.notFound, &raw.title, &raw.savedPosition,
		&raw.timesOpened, &raw.dateAdded, &raw.playable, &raw.description,
	)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(raw), nil
}

// decodeRecord is the single place where defaults for fields missing from
// older rows are applied.
func decodeRecord(raw rawRecord) Record {
	r := Record{
		ID:           raw.id,
		Path:         raw.path,
		Size:         raw.size,
		LastModified: raw.lastModified,
		Rating:       raw.rating,
		Seen:         raw.seen,
		Hearted:      raw.hearted.Valid && raw.hearted.Bool,
		Hidden:       raw.hidden,
		Deleted:      raw.deleted,
		NotFound:     raw.notFound,
		TimesOpened:  int(raw.timesOpened.Int64),
		DateAdded:    raw.lastModified,
		Playable:     raw.playable,
		Description:  raw.description,
	}
	if raw.duration.Valid {
		v := raw.duration.Float64
		r.Duration = &v
	}
	if raw.title.Valid {
		v := raw.title.String
		r.Title = &v
	}
	if raw.savedPosition.Valid {
		v := raw.savedPosition.Float64
		r.SavedPosition = &v
	}
	if raw.dateAdded.Valid {
		r.DateAdded = raw.dateAdded.Int64
	}

	var tags []string
	if raw.tags != "" {
		if err := json.Unmarshal([]byte(raw.tags), &tags); err != nil {
			logging.Warn("Record %s has unreadable tags, resetting: %v", raw.id, err)
			tags = nil
		}
	}
	r.Tags = NormalizeTags(tags)
	return r
}

// GetRecord retrieves a record by identifier.
func (d *Database) GetRecord(ctx context.Context, id string) (Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_record", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec Record
	rec, err = scanRecord(d.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// GetRecordByPath retrieves a record by its relative path.
func (d *Database) GetRecordByPath(ctx context.Context, path string) (Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_record_by_path", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec Record
	rec, err = scanRecord(d.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("record at %s: %w", path, ErrNotFound)
	}
	return rec, err
}

// GetRecords retrieves the records with the given identifiers. Unknown
// identifiers are skipped.
func (d *Database) GetRecords(ctx context.Context, ids []string) ([]Record, error) {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := d.GetRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// AllRecords returns every record ordered by path.
func (d *Database) AllRecords(ctx context.Context) ([]Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("all_records", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM records ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		rec, err = scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	err = rows.Err()
	return records, err
}

// UpsertRecord inserts or replaces a single record.
func (d *Database) UpsertRecord(ctx context.Context, rec Record) error {
	return d.UpsertRecords(ctx, []Record{rec})
}

// UpsertRecords writes all records in one transaction. Either every record
// is stored or none is; on failure the returned error wraps ErrBatchRejected.
// Thumbnail tables are never touched.
func (d *Database) UpsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_records", start, err) }()

	for _, rec := range records {
		if err = validateRecord(rec); err != nil {
			err = fmt.Errorf("%w: %w", ErrBatchRejected, err)
			return err
		}
	}

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, prepErr := tx.PrepareContext(ctx, upsertRecordQuery)
		if prepErr != nil {
			return prepErr
		}
		defer stmt.Close()

		for _, rec := range records {
			if execErr := upsertRecord(ctx, stmt, rec); execErr != nil {
				return fmt.Errorf("record %s (%s): %w", rec.ID, rec.Path, execErr)
			}
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrBatchRejected, err)
	}
	return err
}

const upsertRecordQuery = `
INSERT INTO records (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	path = excluded.path,
	size = excluded.size,
	last_modified = excluded.last_modified,
	duration = excluded.duration,
	rating = excluded.rating,
	seen = excluded.seen,
	tags = excluded.tags,
	hearted = excluded.hearted,
	hidden = excluded.hidden,
	deleted = excluded.deleted,
	not_found = excluded.not_found,
	title = excluded.title,
	saved_position = excluded.saved_position,
	times_opened = excluded.times_opened,
	date_added = excluded.date_added,
	playable = excluded.playable,
	description = excluded.description
`

func upsertRecord(ctx context.Context, stmt *sql.Stmt, rec Record) error {
	tags, err := json.Marshal(NormalizeTags(rec.Tags))
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		rec.ID, rec.Path, rec.Size, rec.LastModified, nullFloat(rec.Duration),
		rec.Rating, rec.Seen, string(tags), rec.Hearted, rec.Hidden,
		rec.Deleted, rec.NotFound, nullString(rec.Title), nullFloat(rec.SavedPosition),
		rec.TimesOpened, rec.DateAdded, rec.Playable, rec.Description,
	)
	return err
}

func validateRecord(rec Record) error {
	switch {
	case rec.ID == "":
		return errors.New("record has no id")
	case rec.Path == "":
		return fmt.Errorf("record %s has no path", rec.ID)
	case rec.Rating < 0:
		return fmt.Errorf("record %s has negative rating %d", rec.ID, rec.Rating)
	case rec.TimesOpened < 0:
		return fmt.Errorf("record %s has negative open count %d", rec.ID, rec.TimesOpened)
	}
	return nil
}

// DeleteRecord physically removes a record together with its thumbnail and
// timeline preview. Deleting an unknown identifier is not an error.
func (d *Database) DeleteRecord(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_record", start, err) }()

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM records WHERE id = ?",
			"DELETE FROM thumbnails WHERE record_id = ?",
			"DELETE FROM timeline_thumbnails WHERE record_id = ?",
		} {
			if _, execErr := tx.ExecContext(ctx, q, id); execErr != nil {
				return execErr
			}
		}
		return nil
	})
	return err
}

// Purge removes every record already flagged deleted, along with its
// artifacts. It returns the number of records removed.
func (d *Database) Purge(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("purge", start, err) }()

	var removed int64
	err = d.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM thumbnails WHERE record_id IN (SELECT id FROM records WHERE deleted = 1)",
			"DELETE FROM timeline_thumbnails WHERE record_id IN (SELECT id FROM records WHERE deleted = 1)",
		} {
			if _, execErr := tx.ExecContext(ctx, q); execErr != nil {
				return execErr
			}
		}
		res, execErr := tx.ExecContext(ctx, "DELETE FROM records WHERE deleted = 1")
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	return int(removed), err
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
