package sqldb

import "context"

const insertObservationTagOrIgnore = `INSERT OR IGNORE INTO observation_tags (
    observation_time, observation_suspicion, tag
) VALUES (?, ?, ?)`

func (q *Queries) InsertObservationTagOrIgnore(ctx context.Context, arg ObservationTag) error {
	_, err := q.db.ExecContext(ctx, insertObservationTagOrIgnore, arg.ObservationTime, arg.ObservationSuspicion, arg.Tag)
	return err
}

const deleteObservationTags = `DELETE FROM observation_tags WHERE observation_time = ? AND observation_suspicion = ?`

func (q *Queries) DeleteObservationTags(ctx context.Context, arg ObservationKeyParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteObservationTags, arg.Time, arg.Suspicion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listTagsByObservation = `SELECT t.tag, t.parent FROM tags t
JOIN observation_tags ot ON ot.tag = t.tag
WHERE ot.observation_time = ? AND ot.observation_suspicion = ?
ORDER BY t.tag`

func (q *Queries) ListTagsByObservation(ctx context.Context, arg ObservationKeyParams) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTagsByObservation, arg.Time, arg.Suspicion)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}
