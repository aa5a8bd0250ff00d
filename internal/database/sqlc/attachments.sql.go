package sqldb

import (
	"context"
	"database/sql"
)

const insertAttachment = `INSERT INTO attachments (
    file_path, observation_time, observation_suspicion, type
) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertAttachment(ctx context.Context, arg Attachment) error {
	_, err := q.db.ExecContext(ctx, insertAttachment, arg.FilePath, arg.ObservationTime, arg.ObservationSuspicion, arg.Type)
	return err
}

const getAttachment = `SELECT file_path, observation_time, observation_suspicion, type
FROM attachments WHERE file_path = ?`

func (q *Queries) GetAttachment(ctx context.Context, filePath string) (Attachment, error) {
	row := q.db.QueryRowContext(ctx, getAttachment, filePath)
	var i Attachment
	err := row.Scan(&i.FilePath, &i.ObservationTime, &i.ObservationSuspicion, &i.Type)
	return i, err
}

const deleteAttachment = `DELETE FROM attachments WHERE file_path = ?`

func (q *Queries) DeleteAttachment(ctx context.Context, filePath string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAttachment, filePath)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countAttachmentsByType = `SELECT COUNT(*) FROM attachments
WHERE observation_time = ? AND observation_suspicion = ? AND type = ?`

type CountAttachmentsByTypeParams struct {
	Time      int64
	Suspicion string
	Type      string
}

func (q *Queries) CountAttachmentsByType(ctx context.Context, arg CountAttachmentsByTypeParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAttachmentsByType, arg.Time, arg.Suspicion, arg.Type).Scan(&n)
	return n, err
}

const listAttachmentsByObservation = `SELECT file_path, observation_time, observation_suspicion, type
FROM attachments
WHERE observation_time = ? AND observation_suspicion = ?
ORDER BY file_path`

func (q *Queries) ListAttachmentsByObservation(ctx context.Context, arg ObservationKeyParams) ([]Attachment, error) {
	rows, err := q.db.QueryContext(ctx, listAttachmentsByObservation, arg.Time, arg.Suspicion)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

const listAllAttachments = `SELECT file_path, observation_time, observation_suspicion, type
FROM attachments
ORDER BY observation_time, observation_suspicion, file_path`

func (q *Queries) ListAllAttachments(ctx context.Context) ([]Attachment, error) {
	rows, err := q.db.QueryContext(ctx, listAllAttachments)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

func scanAttachments(rows *sql.Rows) ([]Attachment, error) {
	defer rows.Close()
	var items []Attachment
	for rows.Next() {
		var i Attachment
		if err := rows.Scan(&i.FilePath, &i.ObservationTime, &i.ObservationSuspicion, &i.Type); err != nil {
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
