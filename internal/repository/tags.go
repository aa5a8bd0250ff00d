package repository

import (
	"context"
	"sync"

	"github.com/fieldnotes-md/fieldnotes/internal/database"
	"github.com/fieldnotes-md/fieldnotes/internal/live"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

type TagRepository struct {
	writer

	once sync.Once
	all  *live.Query[[]model.Tag]
}

func NewTagRepository(gateway *database.Gateway, queue *workqueue.Queue, opts ...Option) *TagRepository {
	o := buildOptions(opts)
	return &TagRepository{
		writer: writer{
			gateway: gateway,
			queue:   queue,
			logger:  o.logger.With().Str("component", "tags").Logger(),
		},
	}
}

// All follows every tag ordered by content.
func (r *TagRepository) All() *live.Query[[]model.Tag] {
	r.once.Do(func() {
		r.all = live.New[[]model.Tag](r.gateway.Notifier(), r.gateway.AllTags, database.TableTags)
	})
	return r.all
}

// Insert stores tags that do not exist yet. Existing content is left alone.
func (r *TagRepository) Insert(tags ...model.Tag) (*workqueue.Future, error) {
	if err := requireTags(tags); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return workqueue.Completed("insert_tags", nil), nil
	}
	tags = append([]model.Tag(nil), tags...)
	return r.submit("insert_tags", func(ctx context.Context, tx *database.Tx) error {
		return tx.InsertTags(ctx, tags)
	})
}

func (r *TagRepository) Find(ctx context.Context, content string) (model.Tag, error) {
	return r.gateway.FindTag(ctx, content)
}

// Ancestors resolves the parent chain of tag, nearest parent first.
func (r *TagRepository) Ancestors(ctx context.Context, tag model.Tag) ([]model.Tag, error) {
	return r.gateway.TagAncestors(ctx, tag.Content())
}
