package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fieldnotes-md/fieldnotes/internal/database"
	"github.com/fieldnotes-md/fieldnotes/internal/live"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// ObservationRepository reads and writes observations with their tags and
// attachments.
type ObservationRepository struct {
	writer
	pageSize int

	mu             sync.Mutex
	tagQueries     map[model.Key]*live.Query[[]model.Tag]
	attachQueries  map[model.Key]*live.Query[[]model.Attachment]
	allAttachments *live.Query[[]model.Attachment]
}

func NewObservationRepository(gateway *database.Gateway, queue *workqueue.Queue, opts ...Option) *ObservationRepository {
	o := buildOptions(opts)
	return &ObservationRepository{
		writer: writer{
			gateway: gateway,
			queue:   queue,
			logger:  o.logger.With().Str("component", "observations").Logger(),
		},
		pageSize:      o.pageSize,
		tagQueries:    make(map[model.Key]*live.Query[[]model.Tag]),
		attachQueries: make(map[model.Key]*live.Query[[]model.Attachment]),
	}
}

// WriteDown stores obs with its tags, attachments and associations as one
// unit. Unknown tags are created; derived flags are recomputed from what is
// stored once the unit has written its attachments.
func (r *ObservationRepository) WriteDown(obs *model.Detailed) (*workqueue.Future, error) {
	if obs == nil {
		return nil, &model.ValidationError{Field: "observation", Reason: "must not be nil"}
	}
	if err := requireKey(obs.Key()); err != nil {
		return nil, err
	}
	snapshot := obs.Clone()

	return r.submit("write_down", func(ctx context.Context, tx *database.Tx) error {
		key := snapshot.Key()
		tags := snapshot.Tags()
		if err := tx.InsertTags(ctx, tags); err != nil {
			return err
		}
		if err := tx.UpsertObservation(ctx, snapshot.Summary()); err != nil {
			return err
		}
		if err := tx.InsertAttachments(ctx, snapshot.Attachments()); err != nil {
			return err
		}
		if err := tx.InsertObservationTags(ctx, key, tags); err != nil {
			return err
		}
		_, _, err := tx.RecomputeAttachmentFlags(ctx, key)
		return err
	})
}

// UpdateSuspicion renames the observation stored as (updated time,
// oldSuspicion) to updated's suspicion. Attachments and tag associations move
// with it in the same statement.
func (r *ObservationRepository) UpdateSuspicion(oldSuspicion string, updated model.Observation) (*workqueue.Future, error) {
	if err := requireKey(updated.Key()); err != nil {
		return nil, err
	}
	oldKey, err := updated.Key().WithSuspicion(oldSuspicion)
	if err != nil {
		return nil, err
	}
	if oldKey == updated.Key() {
		return workqueue.Completed("update_suspicion", nil), nil
	}

	return r.submit("update_suspicion", func(ctx context.Context, tx *database.Tx) error {
		_, err := tx.RenameObservation(ctx, oldKey, updated.Suspicion())
		return err
	})
}

// UpdateTags replaces the whole tag set of key with tags.
func (r *ObservationRepository) UpdateTags(key model.Key, tags ...model.Tag) (*workqueue.Future, error) {
	if err := requireKey(key); err != nil {
		return nil, err
	}
	if err := requireTags(tags); err != nil {
		return nil, err
	}
	tags = append([]model.Tag(nil), tags...)

	return r.submit("update_tags", func(ctx context.Context, tx *database.Tx) error {
		if _, err := tx.FindObservation(ctx, key); err != nil {
			return err
		}
		if err := tx.InsertTags(ctx, tags); err != nil {
			return err
		}
		if err := tx.DeleteObservationTags(ctx, key); err != nil {
			return err
		}
		return tx.InsertObservationTags(ctx, key, tags)
	})
}

// TagObservation associates tag with key. Tagging twice is a no-op.
func (r *ObservationRepository) TagObservation(key model.Key, tag model.Tag) (*workqueue.Future, error) {
	if err := requireKey(key); err != nil {
		return nil, err
	}
	if err := requireTags([]model.Tag{tag}); err != nil {
		return nil, err
	}

	return r.submit("tag_observation", func(ctx context.Context, tx *database.Tx) error {
		if _, err := tx.FindObservation(ctx, key); err != nil {
			return err
		}
		if err := tx.InsertTags(ctx, []model.Tag{tag}); err != nil {
			return err
		}
		return tx.InsertObservationTags(ctx, key, []model.Tag{tag})
	})
}

// AddAttachment stores a and raises the owner's flag for its type. A path that
// is already stored fails with database.ErrAttachmentExists.
func (r *ObservationRepository) AddAttachment(a model.Attachment) (*workqueue.Future, error) {
	if a.Path() == "" || !a.Type().Valid() {
		return nil, &model.ValidationError{Field: "attachment", Reason: "must be built with NewAttachment"}
	}

	return r.submit("add_attachment", func(ctx context.Context, tx *database.Tx) error {
		if _, err := tx.FindObservation(ctx, a.Owner()); err != nil {
			return err
		}
		if err := tx.InsertAttachments(ctx, []model.Attachment{a}); err != nil {
			return err
		}
		return tx.SetAttachmentFlag(ctx, a.Owner(), a.Type(), true)
	})
}

// RemoveAttachments deletes a batch that may span several observations and
// both types. A flag is lowered only when no attachment of its type is left.
func (r *ObservationRepository) RemoveAttachments(attachments ...model.Attachment) (*workqueue.Future, error) {
	if len(attachments) == 0 {
		return workqueue.Completed("remove_attachments", nil), nil
	}
	paths := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if a.Path() == "" {
			return nil, &model.ValidationError{Field: "attachment", Reason: "path must not be empty"}
		}
		paths = append(paths, a.Path())
	}

	return r.submit("remove_attachments", func(ctx context.Context, tx *database.Tx) error {
		plan, err := planRemoval(ctx, tx, paths)
		if err != nil {
			return err
		}
		if len(plan.paths) == 0 {
			return nil
		}
		if _, err := tx.DeleteAttachments(ctx, plan.paths); err != nil {
			return err
		}
		for _, slot := range plan.cleared() {
			if err := tx.SetAttachmentFlag(ctx, slot.key, slot.typ, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// flagSlot is one derived flag: the attachments of one type on one observation.
type flagSlot struct {
	key model.Key
	typ model.AttachmentType
}

type removalPlan struct {
	paths     []string
	remaining map[flagSlot]int64
}

// attachmentCounter is the part of a transaction planRemoval reads from.
type attachmentCounter interface {
	FindAttachment(ctx context.Context, path string) (model.Attachment, error)
	CountAttachments(ctx context.Context, key model.Key, typ model.AttachmentType) (int64, error)
}

// planRemoval counts each slot once, before anything is deleted, and then
// decrements the running count for every path of the batch in that slot.
// Paths that are not stored are skipped; stored owner and type win.
func planRemoval(ctx context.Context, tx attachmentCounter, paths []string) (removalPlan, error) {
	plan := removalPlan{remaining: make(map[flagSlot]int64)}
	seen := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		stored, err := tx.FindAttachment(ctx, path)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return removalPlan{}, err
		}

		slot := flagSlot{key: stored.Owner(), typ: stored.Type()}
		if _, counted := plan.remaining[slot]; !counted {
			n, err := tx.CountAttachments(ctx, slot.key, slot.typ)
			if err != nil {
				return removalPlan{}, fmt.Errorf("failed to count %v attachments of %s: %w", slot.typ, slot.key, err)
			}
			plan.remaining[slot] = n
		}
		plan.remaining[slot]--
		plan.paths = append(plan.paths, path)
	}
	return plan, nil
}

// cleared lists the slots whose running count reached exactly zero, in a
// stable order.
func (p removalPlan) cleared() []flagSlot {
	var out []flagSlot
	for slot, n := range p.remaining {
		if n == 0 {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key != out[j].key {
			return out[i].key.Less(out[j].key)
		}
		return out[i].typ < out[j].typ
	})
	return out
}

// All is every observation ordered by time, one page at a time. Each call
// returns an independent window.
func (r *ObservationRepository) All() *live.Paged[model.Observation] {
	return live.NewPaged[model.Observation](r.gateway.Notifier(), r.pageSize, r.gateway.ListObservations, database.TableObservations)
}

// Filtered is All restricted to criteria.
func (r *ObservationRepository) Filtered(criteria model.FilterCriteria) *live.Paged[model.Observation] {
	if criteria.IsEmpty() {
		return r.All()
	}
	return live.NewPaged[model.Observation](r.gateway.Notifier(), r.pageSize,
		func(ctx context.Context, limit, offset int) ([]model.Observation, error) {
			return r.gateway.FilterObservations(ctx, criteria, limit, offset)
		},
		database.TableObservations, database.TableObservationTags, database.TableTags)
}

// TagsFor follows the tags of key. The same query is returned for the same
// key while it is in use, so every consumer shares one subscription. Queries
// nobody watches are forgotten the next time a new key is asked for.
func (r *ObservationRepository) TagsFor(key model.Key) *live.Query[[]model.Tag] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.tagQueries[key]; ok {
		return q
	}
	pruneIdle(r.tagQueries)
	q := live.New[[]model.Tag](r.gateway.Notifier(), func(ctx context.Context) ([]model.Tag, error) {
		return r.gateway.TagsFor(ctx, key)
	}, database.TableObservationTags, database.TableTags)
	r.tagQueries[key] = q
	return q
}

// AttachmentsFor follows the attachments of key, memoized like TagsFor.
func (r *ObservationRepository) AttachmentsFor(key model.Key) *live.Query[[]model.Attachment] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.attachQueries[key]; ok {
		return q
	}
	pruneIdle(r.attachQueries)
	q := live.New[[]model.Attachment](r.gateway.Notifier(), func(ctx context.Context) ([]model.Attachment, error) {
		return r.gateway.AttachmentsFor(ctx, key)
	}, database.TableAttachments)
	r.attachQueries[key] = q
	return q
}

// pruneIdle drops memoized queries without watchers.
func pruneIdle[T any](queries map[model.Key]*live.Query[T]) {
	for key, q := range queries {
		if q.Watchers() == 0 {
			delete(queries, key)
		}
	}
}

// AllAttachments follows every attachment ordered by owner time and suspicion.
func (r *ObservationRepository) AllAttachments() *live.Query[[]model.Attachment] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allAttachments == nil {
		r.allAttachments = live.New[[]model.Attachment](r.gateway.Notifier(), r.gateway.AllAttachments, database.TableAttachments)
	}
	return r.allAttachments
}

// Find returns the summary of key.
func (r *ObservationRepository) Find(ctx context.Context, key model.Key) (model.Observation, error) {
	return r.gateway.FindObservation(ctx, key)
}

// Detail returns key with its tags and attachments loaded.
func (r *ObservationRepository) Detail(ctx context.Context, key model.Key) (*model.Detailed, error) {
	return r.gateway.Detail(ctx, key)
}

// FindAttachment returns the stored attachment at path.
func (r *ObservationRepository) FindAttachment(ctx context.Context, path string) (model.Attachment, error) {
	return r.gateway.FindAttachment(ctx, path)
}

func (r *ObservationRepository) Count(ctx context.Context) (int64, error) {
	return r.gateway.CountObservations(ctx)
}
