package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sqldb "github.com/fieldnotes-md/fieldnotes/internal/database/sqlc"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

// Tx is one atomic unit of gateway statements. It is only valid inside the
// function passed to Gateway.WithTx.
type Tx struct {
	reader
	touched map[string]struct{}
}

func (tx *Tx) touch(tables ...string) {
	for _, t := range tables {
		tx.touched[t] = struct{}{}
	}
}

// Touched lists the tables written so far, sorted.
func (tx *Tx) Touched() []string {
	out := make([]string, 0, len(tx.touched))
	for t := range tx.touched {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UpsertObservation inserts obs or replaces the non-key columns of an existing
// row. Dependent rows are never deleted by a replace.
func (tx *Tx) UpsertObservation(ctx context.Context, obs model.Observation) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	if err := q.UpsertObservation(ctx, observationToParams(obs)); err != nil {
		return fmt.Errorf("failed to write observation %s: %w", obs.Key(), classify(err))
	}
	tx.touch(TableObservations)
	return nil
}

// InsertAttachments stores a batch. An already stored path fails the unit with
// ErrAttachmentExists.
func (tx *Tx) InsertAttachments(ctx context.Context, attachments []model.Attachment) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	for _, a := range attachments {
		if err := q.InsertAttachment(ctx, attachmentToRow(a)); err != nil {
			err = classify(err)
			if errors.Is(err, ErrConflict) {
				return fmt.Errorf("%w: %q", ErrAttachmentExists, a.Path())
			}
			return fmt.Errorf("failed to insert attachment %q: %w", a.Path(), err)
		}
	}
	if len(attachments) > 0 {
		tx.touch(TableAttachments)
	}
	return nil
}

// InsertTags stores tags that do not exist yet. Parents present in the same
// batch are written before their children; parents outside the batch must
// already be stored, otherwise the unit fails with ErrUnknownReference.
func (tx *Tx) InsertTags(ctx context.Context, tags []model.Tag) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	var inserted int64
	for _, tag := range parentsFirst(tags) {
		n, err := q.InsertTagOrIgnore(ctx, tagToParams(tag))
		if err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag.Content(), classify(err))
		}
		inserted += n
	}
	if inserted > 0 {
		tx.touch(TableTags)
	}
	return nil
}

// InsertObservationTags associates tags with key, ignoring existing pairs.
func (tx *Tx) InsertObservationTags(ctx context.Context, key model.Key, tags []model.Tag) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		err := q.InsertObservationTagOrIgnore(ctx, sqldb.ObservationTag{
			ObservationTime:      key.Millis(),
			ObservationSuspicion: key.Suspicion(),
			Tag:                  tag.Content(),
		})
		if err != nil {
			return fmt.Errorf("failed to tag %s with %q: %w", key, tag.Content(), classify(err))
		}
	}
	if len(tags) > 0 {
		tx.touch(TableObservationTags)
	}
	return nil
}

// DeleteObservationTags removes every association of key.
func (tx *Tx) DeleteObservationTags(ctx context.Context, key model.Key) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	n, err := q.DeleteObservationTags(ctx, keyParams(key))
	if err != nil {
		return fmt.Errorf("failed to clear tags of %s: %w", key, classify(err))
	}
	if n > 0 {
		tx.touch(TableObservationTags)
	}
	return nil
}

// RenameObservation changes the suspicion of key with a single UPDATE. The
// schema cascades the new key to attachments and tag associations inside the
// same statement.
func (tx *Tx) RenameObservation(ctx context.Context, key model.Key, suspicion string) (model.Key, error) {
	renamed, err := key.WithSuspicion(suspicion)
	if err != nil {
		return model.Key{}, err
	}
	q, err := tx.queries()
	if err != nil {
		return model.Key{}, err
	}
	n, err := q.RenameObservation(ctx, sqldb.RenameObservationParams{
		NewSuspicion: suspicion,
		Time:         key.Millis(),
		Suspicion:    key.Suspicion(),
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrConflict) {
			return model.Key{}, fmt.Errorf("%w: %s", ErrObservationExists, renamed)
		}
		return model.Key{}, fmt.Errorf("failed to rename %s: %w", key, err)
	}
	if n == 0 {
		return model.Key{}, fmt.Errorf("observation %s: %w", key, ErrNotFound)
	}
	tx.touch(TableObservations, TableAttachments, TableObservationTags)
	return renamed, nil
}

// DeleteAttachments removes a batch by path and returns how many rows went away.
func (tx *Tx) DeleteAttachments(ctx context.Context, paths []string) (int64, error) {
	q, err := tx.queries()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, path := range paths {
		n, err := q.DeleteAttachment(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("failed to delete attachment %q: %w", path, classify(err))
		}
		total += n
	}
	if total > 0 {
		tx.touch(TableAttachments)
	}
	return total, nil
}

// SetAttachmentFlags writes both derived flags of key.
func (tx *Tx) SetAttachmentFlags(ctx context.Context, key model.Key, images, recordings bool) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	n, err := q.SetAttachmentFlags(ctx, sqldb.SetAttachmentFlagsParams{
		ImagesAttached:     boolToInt64(images),
		RecordingsAttached: boolToInt64(recordings),
		Time:               key.Millis(),
		Suspicion:          key.Suspicion(),
	})
	if err != nil {
		return fmt.Errorf("failed to update flags of %s: %w", key, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("observation %s: %w", key, ErrNotFound)
	}
	tx.touch(TableObservations)
	return nil
}

// SetAttachmentFlag writes the derived flag that typ contributes to.
func (tx *Tx) SetAttachmentFlag(ctx context.Context, key model.Key, typ model.AttachmentType, value bool) error {
	q, err := tx.queries()
	if err != nil {
		return err
	}
	params := sqldb.SetFlagParams{Value: boolToInt64(value), Time: key.Millis(), Suspicion: key.Suspicion()}

	var n int64
	switch typ {
	case model.Image:
		n, err = q.SetImagesAttached(ctx, params)
	case model.Audio:
		n, err = q.SetRecordingsAttached(ctx, params)
	default:
		return fmt.Errorf("unknown attachment type %v", typ)
	}
	if err != nil {
		return fmt.Errorf("failed to update %v flag of %s: %w", typ, key, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("observation %s: %w", key, ErrNotFound)
	}
	tx.touch(TableObservations)
	return nil
}

// RecomputeAttachmentFlags derives both flags of key from the stored attachments.
func (tx *Tx) RecomputeAttachmentFlags(ctx context.Context, key model.Key) (images, recordings bool, err error) {
	nImages, err := tx.CountAttachments(ctx, key, model.Image)
	if err != nil {
		return false, false, err
	}
	nRecordings, err := tx.CountAttachments(ctx, key, model.Audio)
	if err != nil {
		return false, false, err
	}
	images, recordings = nImages > 0, nRecordings > 0
	if err := tx.SetAttachmentFlags(ctx, key, images, recordings); err != nil {
		return false, false, err
	}
	return images, recordings, nil
}

// parentsFirst orders tags so that a parent in the batch precedes its children.
func parentsFirst(tags []model.Tag) []model.Tag {
	byContent := make(map[string]model.Tag, len(tags))
	for _, t := range tags {
		byContent[t.Content()] = t
	}

	ordered := make([]model.Tag, 0, len(byContent))
	placed := make(map[string]bool, len(byContent))
	var place func(t model.Tag, depth int)
	place = func(t model.Tag, depth int) {
		if placed[t.Content()] || depth > len(byContent) {
			return
		}
		if parent, ok := t.Parent(); ok {
			if p, inBatch := byContent[parent]; inBatch {
				place(p, depth+1)
			}
		}
		if !placed[t.Content()] {
			placed[t.Content()] = true
			ordered = append(ordered, t)
		}
	}
	for _, t := range tags {
		place(byContent[t.Content()], 0)
	}
	return ordered
}
