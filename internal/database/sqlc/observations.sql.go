package sqldb

import (
	"context"
	"database/sql"
)

const observationColumns = `time, suspicion, comment, determined, images_attached, recordings_attached, pos_latitude, pos_longitude`

const upsertObservation = `INSERT INTO observations (
    time, suspicion, comment, determined, images_attached, recordings_attached, pos_latitude, pos_longitude
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (time, suspicion) DO UPDATE SET
    comment = excluded.comment,
    determined = excluded.determined,
    images_attached = excluded.images_attached,
    recordings_attached = excluded.recordings_attached,
    pos_latitude = excluded.pos_latitude,
    pos_longitude = excluded.pos_longitude`

type UpsertObservationParams struct {
	Time               int64
	Suspicion          string
	Comment            sql.NullString
	Determined         int64
	ImagesAttached     int64
	RecordingsAttached int64
	PosLatitude        sql.NullFloat64
	PosLongitude       sql.NullFloat64
}

func (q *Queries) UpsertObservation(ctx context.Context, arg UpsertObservationParams) error {
	_, err := q.db.ExecContext(ctx, upsertObservation,
		arg.Time,
		arg.Suspicion,
		arg.Comment,
		arg.Determined,
		arg.ImagesAttached,
		arg.RecordingsAttached,
		arg.PosLatitude,
		arg.PosLongitude,
	)
	return err
}

const getObservation = `SELECT ` + observationColumns + ` FROM observations WHERE time = ? AND suspicion = ?`

type ObservationKeyParams struct {
	Time      int64
	Suspicion string
}

func (q *Queries) GetObservation(ctx context.Context, arg ObservationKeyParams) (Observation, error) {
	row := q.db.QueryRowContext(ctx, getObservation, arg.Time, arg.Suspicion)
	return scanObservation(row)
}

const listObservations = `SELECT ` + observationColumns + ` FROM observations
ORDER BY time, suspicion
LIMIT ? OFFSET ?`

type ListObservationsParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListObservations(ctx context.Context, arg ListObservationsParams) ([]Observation, error) {
	rows, err := q.db.QueryContext(ctx, listObservations, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return ScanObservations(rows)
}

const countObservations = `SELECT COUNT(*) FROM observations`

func (q *Queries) CountObservations(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countObservations).Scan(&n)
	return n, err
}

const renameObservation = `UPDATE observations SET suspicion = ? WHERE time = ? AND suspicion = ?`

type RenameObservationParams struct {
	NewSuspicion string
	Time         int64
	Suspicion    string
}

// RenameObservation returns the number of rows changed. Attachments and
// observation_tags follow through ON UPDATE CASCADE.
func (q *Queries) RenameObservation(ctx context.Context, arg RenameObservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, renameObservation, arg.NewSuspicion, arg.Time, arg.Suspicion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setAttachmentFlags = `UPDATE observations SET images_attached = ?, recordings_attached = ?
WHERE time = ? AND suspicion = ?`

type SetAttachmentFlagsParams struct {
	ImagesAttached     int64
	RecordingsAttached int64
	Time               int64
	Suspicion          string
}

func (q *Queries) SetAttachmentFlags(ctx context.Context, arg SetAttachmentFlagsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setAttachmentFlags, arg.ImagesAttached, arg.RecordingsAttached, arg.Time, arg.Suspicion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setImagesAttached = `UPDATE observations SET images_attached = ? WHERE time = ? AND suspicion = ?`

type SetFlagParams struct {
	Value     int64
	Time      int64
	Suspicion string
}

func (q *Queries) SetImagesAttached(ctx context.Context, arg SetFlagParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setImagesAttached, arg.Value, arg.Time, arg.Suspicion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setRecordingsAttached = `UPDATE observations SET recordings_attached = ? WHERE time = ? AND suspicion = ?`

func (q *Queries) SetRecordingsAttached(ctx context.Context, arg SetFlagParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setRecordingsAttached, arg.Value, arg.Time, arg.Suspicion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (Observation, error) {
	var i Observation
	err := row.Scan(
		&i.Time,
		&i.Suspicion,
		&i.Comment,
		&i.Determined,
		&i.ImagesAttached,
		&i.RecordingsAttached,
		&i.PosLatitude,
		&i.PosLongitude,
	)
	return i, err
}

// ScanObservations drains rows selected with the observation column list and closes them.
func ScanObservations(rows *sql.Rows) ([]Observation, error) {
	defer rows.Close()
	var items []Observation
	for rows.Next() {
		i, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ObservationColumns is the select list ScanObservations expects, qualified by alias.
func ObservationColumns(alias string) string {
	if alias == "" {
		return observationColumns
	}
	p := alias + "."
	return p + "time, " + p + "suspicion, " + p + "comment, " + p + "determined, " +
		p + "images_attached, " + p + "recordings_attached, " + p + "pos_latitude, " + p + "pos_longitude"
}

// Query exposes the underlying handle for statements composed at runtime.
func (q *Queries) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, query, args...)
}
