package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fieldnotes-md/fieldnotes/internal/filesystem"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// LocationProvider reports where the device currently is. A nil location
// with a nil error means the position is unknown.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (*model.Location, error)
}

// MediaProvider creates a new, empty media file and returns its path.
type MediaProvider interface {
	NewMediaFile(ctx context.Context, typ model.AttachmentType) (string, error)
}

// Observations is the part of the observation repository the recorder drives.
type Observations interface {
	WriteDown(obs *model.Detailed) (*workqueue.Future, error)
	UpdateSuspicion(oldSuspicion string, updated model.Observation) (*workqueue.Future, error)
	UpdateTags(key model.Key, tags ...model.Tag) (*workqueue.Future, error)
	TagObservation(key model.Key, tag model.Tag) (*workqueue.Future, error)
	AddAttachment(a model.Attachment) (*workqueue.Future, error)
	RemoveAttachments(attachments ...model.Attachment) (*workqueue.Future, error)
	Find(ctx context.Context, key model.Key) (model.Observation, error)
	FindAttachment(ctx context.Context, path string) (model.Attachment, error)
}

type Tags interface {
	Insert(tags ...model.Tag) (*workqueue.Future, error)
}

// Submission is everything a new observation is created from. Tags are tag
// paths as accepted by ParseTagPath.
type Submission struct {
	Suspicion  string
	Comment    string
	Determined bool
	Location   *model.Location
	Tags       []string
	ImagePath  string
	AudioPath  string
}

// Receipt identifies a submitted write.
type Receipt struct {
	Key   model.Key
	Write *workqueue.Future
}

// Recorder turns user input into repository writes.
type Recorder struct {
	observations Observations
	tags         Tags
	clock        model.Clock
	location     LocationProvider
	media        MediaProvider
	logger       zerolog.Logger
}

type RecorderOption func(*Recorder)

func WithClock(clock model.Clock) RecorderOption {
	return func(r *Recorder) { r.clock = clock }
}

func WithLocationProvider(p LocationProvider) RecorderOption {
	return func(r *Recorder) { r.location = p }
}

func WithMediaProvider(p MediaProvider) RecorderOption {
	return func(r *Recorder) { r.media = p }
}

func WithLogger(logger zerolog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func NewRecorder(observations Observations, tags Tags, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		observations: observations,
		tags:         tags,
		clock:        model.SystemClock,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "recorder").Logger()
	return r
}

// Submit builds a new observation stamped with the current time and queues
// it. Invalid input fails before anything is queued.
func (r *Recorder) Submit(ctx context.Context, s Submission) (*Receipt, error) {
	obs, err := model.NoticeNew(r.clock, s.Suspicion, s.Comment)
	if err != nil {
		return nil, err
	}
	if s.Determined {
		obs.MarkDetermined()
	}

	leaves, parents, err := resolveTagPaths(s.Tags)
	if err != nil {
		return nil, err
	}
	if err := obs.TagIfNecessary(leaves...); err != nil {
		return nil, err
	}

	for _, media := range []struct {
		path string
		typ  model.AttachmentType
	}{{s.ImagePath, model.Image}, {s.AudioPath, model.Audio}} {
		if media.path == "" {
			continue
		}
		a, err := model.NewAttachment(media.path, media.typ, obs.Key())
		if err != nil {
			return nil, err
		}
		if err := obs.Attach(a); err != nil {
			return nil, err
		}
	}

	location := s.Location
	if location == nil {
		location = r.currentLocation(ctx)
	}
	obs.AttachLocation(location)

	if err := r.ensureParents(parents); err != nil {
		return nil, err
	}
	future, err := r.observations.WriteDown(obs)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("observation", obs.Key().String()).Int("tags", len(leaves)).Msg("observation submitted")
	return &Receipt{Key: obs.Key(), Write: future}, nil
}

// Retag replaces the tags of key with the given tag paths.
func (r *Recorder) Retag(key model.Key, paths ...string) (*workqueue.Future, error) {
	leaves, parents, err := resolveTagPaths(paths)
	if err != nil {
		return nil, err
	}
	if err := r.ensureParents(parents); err != nil {
		return nil, err
	}
	return r.observations.UpdateTags(key, leaves...)
}

// Tag adds one tag path to key.
func (r *Recorder) Tag(key model.Key, path string) (*workqueue.Future, error) {
	leaves, parents, err := resolveTagPaths([]string{path})
	if err != nil {
		return nil, err
	}
	if err := r.ensureParents(parents); err != nil {
		return nil, err
	}
	return r.observations.TagObservation(key, leaves[0])
}

// Rename gives the observation stored under key a new suspicion. The
// returned key is where it will live once the write completes.
func (r *Recorder) Rename(ctx context.Context, key model.Key, suspicion string) (model.Key, *workqueue.Future, error) {
	renamed, err := key.WithSuspicion(suspicion)
	if err != nil {
		return model.Key{}, nil, err
	}
	obs, err := r.observations.Find(ctx, key)
	if err != nil {
		return model.Key{}, nil, err
	}
	comment, _ := obs.Comment()
	updated := model.RestoreObservation(renamed, comment, obs.Determined(),
		obs.ImagesAttached(), obs.RecordingsAttached(), obs.Location())

	future, err := r.observations.UpdateSuspicion(key.Suspicion(), updated)
	if err != nil {
		return model.Key{}, nil, err
	}
	return renamed, future, nil
}

// Attach queues an existing media file as an attachment of key.
func (r *Recorder) Attach(key model.Key, path string, typ model.AttachmentType) (*workqueue.Future, error) {
	a, err := model.NewAttachment(path, typ, key)
	if err != nil {
		return nil, err
	}
	return r.observations.AddAttachment(a)
}

// Detach removes the attachments stored at paths. Every path must be stored.
func (r *Recorder) Detach(ctx context.Context, paths ...string) (*workqueue.Future, error) {
	attachments := make([]model.Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := r.observations.FindAttachment(ctx, p)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return r.observations.RemoveAttachments(attachments...)
}

// Capture creates a new media file for key and queues it as an attachment.
func (r *Recorder) Capture(ctx context.Context, key model.Key, typ model.AttachmentType) (model.Attachment, *workqueue.Future, error) {
	if r.media == nil {
		return model.Attachment{}, nil, fmt.Errorf("no media provider configured")
	}
	if key.IsZero() {
		return model.Attachment{}, nil, &model.ValidationError{Field: "key", Reason: "must not be empty"}
	}
	if !typ.Valid() {
		return model.Attachment{}, nil, &model.ValidationError{Field: "attachment type", Reason: "unknown"}
	}

	path, err := r.media.NewMediaFile(ctx, typ)
	if err != nil {
		return model.Attachment{}, nil, fmt.Errorf("failed to create media file: %w", err)
	}
	a, err := model.NewAttachment(path, typ, key)
	if err != nil {
		r.discard(path)
		return model.Attachment{}, nil, err
	}
	future, err := r.observations.AddAttachment(a)
	if err != nil {
		r.discard(path)
		return model.Attachment{}, nil, err
	}
	return a, future, nil
}

func (r *Recorder) discard(path string) {
	if err := filesystem.DeleteFile(path); err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("failed to remove unused media file")
	}
}

// currentLocation degrades provider failures to an unknown location.
func (r *Recorder) currentLocation(ctx context.Context) *model.Location {
	if r.location == nil {
		return nil
	}
	loc, err := r.location.CurrentLocation(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("location unavailable, recording without it")
		return nil
	}
	return loc
}

func (r *Recorder) ensureParents(parents []model.Tag) error {
	if len(parents) == 0 {
		return nil
	}
	_, err := r.tags.Insert(parents...)
	return err
}

// resolveTagPaths splits paths into the tags to associate and the ancestor
// tags that must exist first.
func resolveTagPaths(paths []string) (leaves, parents []model.Tag, err error) {
	seen := map[string]struct{}{}
	for _, p := range paths {
		chain, err := ParseTagPath(p)
		if err != nil {
			return nil, nil, err
		}
		leaves = append(leaves, chain[len(chain)-1])
		for _, t := range chain[:len(chain)-1] {
			if _, ok := seen[t.Content()]; ok {
				continue
			}
			seen[t.Content()] = struct{}{}
			parents = append(parents, t)
		}
	}
	return leaves, parents, nil
}
