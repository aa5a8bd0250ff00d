package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqldb "github.com/fieldnotes-md/fieldnotes/internal/database/sqlc"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

// Gateway is the storage-facing contract. Reads run directly against the
// handle; writes run inside WithTx so each unit commits or rolls back whole.
type Gateway struct {
	reader
	ctx *Context
}

func NewGateway(dbCtx *Context) *Gateway {
	return &Gateway{
		reader: reader{q: queriesFromContext(dbCtx)},
		ctx:    dbCtx,
	}
}

// Notifier returns the change notifier of the underlying handle.
func (g *Gateway) Notifier() *Notifier {
	if g.ctx == nil {
		return nil
	}
	return g.ctx.Notifier
}

// WithTx runs fn in one transaction. After a successful commit the tables fn
// wrote to are published on the Notifier; a rollback publishes nothing.
func (g *Gateway) WithTx(ctx context.Context, fn func(context.Context, *Tx) error) error {
	if g.ctx == nil || g.ctx.DB == nil {
		return errMissingContext
	}

	sqlTx, err := g.ctx.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	// Releases the connection and its write lock if fn panics.
	defer func() { _ = sqlTx.Rollback() }()

	tx := &Tx{
		reader:  reader{q: queriesFromContext(g.ctx).WithTx(sqlTx)},
		touched: map[string]struct{}{},
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}

	if g.ctx.Notifier != nil {
		g.ctx.Notifier.Publish(tx.Touched()...)
	}
	return nil
}

// readTx runs fn against one read-only snapshot. A read-only BEGIN is
// deferred, so it does not take the write lock the DSN asks writers for.
func (g *Gateway) readTx(ctx context.Context, fn func(context.Context, reader) error) error {
	if g.ctx == nil || g.ctx.DB == nil {
		return errMissingContext
	}

	sqlTx, err := g.ctx.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return classify(fmt.Errorf("failed to begin read transaction: %w", err))
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, reader{q: queriesFromContext(g.ctx).WithTx(sqlTx)}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Detail reads an observation with its tags and attachments from one snapshot.
func (g *Gateway) Detail(ctx context.Context, key model.Key) (*model.Detailed, error) {
	var detailed *model.Detailed
	err := g.readTx(ctx, func(ctx context.Context, tx reader) error {
		obs, err := tx.FindObservation(ctx, key)
		if err != nil {
			return err
		}
		tags, err := tx.TagsFor(ctx, key)
		if err != nil {
			return err
		}
		attachments, err := tx.AttachmentsFor(ctx, key)
		if err != nil {
			return err
		}
		detailed, err = model.NewDetailed(obs, tags, attachments)
		if err != nil {
			return fmt.Errorf("%w: observation %s: %w", ErrFatal, key, err)
		}
		return nil
	})
	return detailed, err
}

// reader holds the read statements shared by Gateway and Tx.
type reader struct {
	q *sqldb.Queries
}

func (r reader) queries() (*sqldb.Queries, error) {
	if r.q == nil {
		return nil, errMissingContext
	}
	return r.q, nil
}

// FindObservation returns ErrNotFound when no observation has key.
func (r reader) FindObservation(ctx context.Context, key model.Key) (model.Observation, error) {
	q, err := r.queries()
	if err != nil {
		return model.Observation{}, err
	}
	row, err := q.GetObservation(ctx, keyParams(key))
	if err != nil {
		return model.Observation{}, fmt.Errorf("observation %s: %w", key, classify(err))
	}
	return mapObservationRow(row)
}

// ListObservations returns a window of all observations ordered by time.
func (r reader) ListObservations(ctx context.Context, limit, offset int) ([]model.Observation, error) {
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	rows, err := q.ListObservations(ctx, sqldb.ListObservationsParams{Limit: int64(limit), Offset: int64(offset)})
	if err != nil {
		return nil, classify(err)
	}
	return mapObservationRows(rows)
}

func (r reader) CountObservations(ctx context.Context) (int64, error) {
	q, err := r.queries()
	if err != nil {
		return 0, err
	}
	n, err := q.CountObservations(ctx)
	return n, classify(err)
}

// FilterObservations returns a window of the observations matching criteria.
func (r reader) FilterObservations(ctx context.Context, criteria model.FilterCriteria, limit, offset int) ([]model.Observation, error) {
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	query, args := buildFilterQuery(criteria, limit, offset)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	result, err := sqldb.ScanObservations(rows)
	if err != nil {
		return nil, classify(err)
	}
	return mapObservationRows(result)
}

// TagsFor returns the tags directly associated with key, ordered by content.
func (r reader) TagsFor(ctx context.Context, key model.Key) ([]model.Tag, error) {
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	rows, err := q.ListTagsByObservation(ctx, keyParams(key))
	if err != nil {
		return nil, classify(err)
	}
	return mapTagRows(rows)
}

// AttachmentsFor returns the attachments of key, ordered by path.
func (r reader) AttachmentsFor(ctx context.Context, key model.Key) ([]model.Attachment, error) {
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	rows, err := q.ListAttachmentsByObservation(ctx, keyParams(key))
	if err != nil {
		return nil, classify(err)
	}
	return mapAttachmentRows(rows)
}

// AllAttachments returns every attachment ordered by owner time, suspicion and path.
func (r reader) AllAttachments(ctx context.Context) ([]model.Attachment, error) {
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	rows, err := q.ListAllAttachments(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return mapAttachmentRows(rows)
}

// FindAttachment returns ErrNotFound when path is not stored.
func (r reader) FindAttachment(ctx context.Context, path string) (model.Attachment, error) {
	q, err := r.queries()
	if err != nil {
		return model.Attachment{}, err
	}
	row, err := q.GetAttachment(ctx, path)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("attachment %q: %w", path, classify(err))
	}
	return mapAttachmentRow(row)
}

// CountAttachments counts the stored attachments of one type for key.
func (r reader) CountAttachments(ctx context.Context, key model.Key, typ model.AttachmentType) (int64, error) {
	q, err := r.queries()
	if err != nil {
		return 0, err
	}
	n, err := q.CountAttachmentsByType(ctx, sqldb.CountAttachmentsByTypeParams{
		Time:      key.Millis(),
		Suspicion: key.Suspicion(),
		Type:      typ.String(),
	})
	return n, classify(err)
}

// AllTags returns every tag ordered by content.
func (r reader) AllTags(ctx context.Context) ([]model.Tag, error) {
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	rows, err := q.ListTags(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return mapTagRows(rows)
}

// FindTag returns ErrNotFound when content is not stored.
func (r reader) FindTag(ctx context.Context, content string) (model.Tag, error) {
	q, err := r.queries()
	if err != nil {
		return model.Tag{}, err
	}
	row, err := q.GetTag(ctx, content)
	if err != nil {
		return model.Tag{}, fmt.Errorf("tag %q: %w", content, classify(err))
	}
	return mapTagRow(row)
}

// TagAncestors walks the parent chain of content, nearest parent first.
func (r reader) TagAncestors(ctx context.Context, content string) ([]model.Tag, error) {
	if _, err := r.FindTag(ctx, content); err != nil {
		return nil, err
	}
	q, err := r.queries()
	if err != nil {
		return nil, err
	}
	rows, err := q.ListTagAncestors(ctx, content)
	if err != nil {
		return nil, classify(err)
	}
	return mapTagRows(rows)
}

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
