package sqldb

import "context"

const deleteAllObservationTags = `DELETE FROM observation_tags`

func (q *Queries) DeleteAllObservationTags(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllObservationTags)
	return err
}

const deleteAllAttachments = `DELETE FROM attachments`

func (q *Queries) DeleteAllAttachments(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllAttachments)
	return err
}

const deleteAllObservations = `DELETE FROM observations`

func (q *Queries) DeleteAllObservations(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllObservations)
	return err
}

const detachAllTags = `UPDATE tags SET parent = NULL WHERE parent IS NOT NULL`

const deleteAllTags = `DELETE FROM tags`

// DeleteAllTags clears parent links first so the self reference never blocks the delete.
func (q *Queries) DeleteAllTags(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, detachAllTags); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, deleteAllTags)
	return err
}
