// Package export writes and replays snapshots of a field-notes database as
// zstd-compressed JSON lines.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// FormatVersion is written into every snapshot header.
const FormatVersion = 1

const (
	kindHeader      = "header"
	kindTag         = "tag"
	kindObservation = "observation"

	readPageSize = 100
	importWindow = 32
)

type Record struct {
	Kind        string             `json:"kind"`
	Header      *Header            `json:"header,omitempty"`
	Tag         *TagRecord         `json:"tag,omitempty"`
	Observation *ObservationRecord `json:"observation,omitempty"`
}

type Header struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
}

type TagRecord struct {
	Content string `json:"content"`
	Parent  string `json:"parent,omitempty"`
}

type AttachmentRecord struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type ObservationRecord struct {
	TimeMillis  int64              `json:"time_ms"`
	Suspicion   string             `json:"suspicion"`
	Comment     string             `json:"comment,omitempty"`
	Determined  bool               `json:"determined"`
	Location    *model.Location    `json:"location,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Attachments []AttachmentRecord `json:"attachments,omitempty"`
}

// Source is what a snapshot is read from. database.Gateway implements it.
type Source interface {
	AllTags(ctx context.Context) ([]model.Tag, error)
	ListObservations(ctx context.Context, limit, offset int) ([]model.Observation, error)
	Detail(ctx context.Context, key model.Key) (*model.Detailed, error)
}

type Stats struct {
	Tags         int
	Observations int
	Failed       int
}

// Export writes every tag, then every observation in time order, to w.
func Export(ctx context.Context, w io.Writer, src Source) (Stats, error) {
	var stats Stats

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return stats, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)

	write := func(r Record) error {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode %s record: %w", r.Kind, err)
		}
		return nil
	}

	err = func() error {
		if err := write(Record{Kind: kindHeader, Header: &Header{Version: FormatVersion, ExportedAt: time.Now().UTC()}}); err != nil {
			return err
		}

		tags, err := src.AllTags(ctx)
		if err != nil {
			return err
		}
		for _, t := range tags {
			parent, _ := t.Parent()
			if err := write(Record{Kind: kindTag, Tag: &TagRecord{Content: t.Content(), Parent: parent}}); err != nil {
				return err
			}
			stats.Tags++
		}

		for offset := 0; ; offset += readPageSize {
			page, err := src.ListObservations(ctx, readPageSize, offset)
			if err != nil {
				return err
			}
			for _, summary := range page {
				detailed, err := src.Detail(ctx, summary.Key())
				if err != nil {
					return err
				}
				if err := write(Record{Kind: kindObservation, Observation: toRecord(detailed)}); err != nil {
					return err
				}
				stats.Observations++
			}
			if len(page) < readPageSize {
				return nil
			}
		}
	}()
	if err != nil {
		_ = zw.Close()
		return stats, err
	}
	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return stats, nil
}

func toRecord(d *model.Detailed) *ObservationRecord {
	rec := &ObservationRecord{
		TimeMillis: d.Key().Millis(),
		Suspicion:  d.Suspicion(),
		Determined: d.Determined(),
		Location:   d.Location(),
	}
	rec.Comment, _ = d.Comment()
	for _, t := range d.Tags() {
		rec.Tags = append(rec.Tags, t.Content())
	}
	for _, a := range d.Attachments() {
		rec.Attachments = append(rec.Attachments, AttachmentRecord{Path: a.Path(), Type: a.Type().String()})
	}
	return rec
}

// Sink is what a snapshot is replayed into. The repositories implement it.
type Sink interface {
	InsertTags(tags ...model.Tag) (*workqueue.Future, error)
	WriteDown(obs *model.Detailed) (*workqueue.Future, error)
}

// SinkFuncs adapts two functions to Sink.
type SinkFuncs struct {
	Tags         func(tags ...model.Tag) (*workqueue.Future, error)
	Observations func(obs *model.Detailed) (*workqueue.Future, error)
}

func (s SinkFuncs) InsertTags(tags ...model.Tag) (*workqueue.Future, error) { return s.Tags(tags...) }
func (s SinkFuncs) WriteDown(obs *model.Detailed) (*workqueue.Future, error) {
	return s.Observations(obs)
}

// Import replays a snapshot. Tags are written first in one unit; every
// observation is its own unit, so one failing record does not stop the rest.
// The returned error joins every record failure.
func Import(ctx context.Context, r io.Reader, sink Sink) (Stats, error) {
	var stats Stats

	zr, err := zstd.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer zr.Close()
	dec := json.NewDecoder(zr)

	var (
		tags     []model.Tag
		tagIndex = map[string]model.Tag{}
		pending  []*workqueue.Future
		failures []error
		sawTags  bool
		header   bool
	)

	flush := func() {
		for _, f := range pending {
			if err := f.Wait(ctx); err != nil {
				stats.Failed++
				stats.Observations--
				failures = append(failures, err)
			}
		}
		pending = pending[:0]
	}
	submit := func(d *model.Detailed) error {
		f, err := sink.WriteDown(d)
		if errors.Is(err, workqueue.ErrQueueFull) {
			flush()
			f, err = sink.WriteDown(d)
		}
		if err != nil {
			return err
		}
		stats.Observations++
		pending = append(pending, f)
		if len(pending) >= importWindow {
			flush()
		}
		return nil
	}
	writeTags := func() error {
		sawTags = true
		if len(tags) == 0 {
			return nil
		}
		f, err := sink.InsertTags(tags...)
		if err != nil {
			return err
		}
		if err := f.Wait(ctx); err != nil {
			return fmt.Errorf("failed to import tags: %w", err)
		}
		stats.Tags = len(tags)
		return nil
	}

	for line := 1; ; line++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			flush()
			return stats, fmt.Errorf("line %d: %w", line, err)
		}

		switch rec.Kind {
		case kindHeader:
			if rec.Header == nil || rec.Header.Version != FormatVersion {
				return stats, fmt.Errorf("line %d: unsupported snapshot version", line)
			}
			header = true
		case kindTag:
			if !header || sawTags {
				return stats, fmt.Errorf("line %d: tag record out of order", line)
			}
			if rec.Tag == nil {
				return stats, fmt.Errorf("line %d: empty tag record", line)
			}
			t, err := model.RestoreTag(rec.Tag.Content, rec.Tag.Parent)
			if err != nil {
				return stats, fmt.Errorf("line %d: %w", line, err)
			}
			tags = append(tags, t)
			tagIndex[t.Content()] = t
		case kindObservation:
			if !header {
				return stats, fmt.Errorf("line %d: missing header", line)
			}
			if !sawTags {
				if err := writeTags(); err != nil {
					return stats, err
				}
			}
			if rec.Observation == nil {
				return stats, fmt.Errorf("line %d: empty observation record", line)
			}
			d, err := fromRecord(rec.Observation, tagIndex)
			if err != nil {
				stats.Failed++
				failures = append(failures, fmt.Errorf("line %d: %w", line, err))
				continue
			}
			if err := submit(d); err != nil {
				flush()
				return stats, fmt.Errorf("line %d: %w", line, err)
			}
		default:
			return stats, fmt.Errorf("line %d: unknown record kind %q", line, rec.Kind)
		}
	}

	if !header {
		return stats, errors.New("snapshot is empty")
	}
	if !sawTags {
		if err := writeTags(); err != nil {
			return stats, err
		}
	}
	flush()
	return stats, errors.Join(failures...)
}

func fromRecord(rec *ObservationRecord, tags map[string]model.Tag) (*model.Detailed, error) {
	key, err := model.KeyFromMillis(rec.TimeMillis, rec.Suspicion)
	if err != nil {
		return nil, err
	}

	var location *model.Location
	if rec.Location != nil {
		location, err = model.NewLocation(rec.Location.Latitude, rec.Location.Longitude)
		if err != nil {
			return nil, err
		}
	}

	d, err := model.NoticeNew(model.ClockFunc(key.Time), key.Suspicion(), rec.Comment)
	if err != nil {
		return nil, err
	}
	if rec.Determined {
		d.MarkDetermined()
	}
	d.AttachLocation(location)

	for _, content := range rec.Tags {
		t, ok := tags[content]
		if !ok {
			if t, err = model.NewTag(content); err != nil {
				return nil, err
			}
		}
		if err := d.TagIfNecessary(t); err != nil {
			return nil, err
		}
	}
	for _, ar := range rec.Attachments {
		typ, err := model.ParseAttachmentType(ar.Type)
		if err != nil {
			return nil, err
		}
		a, err := model.NewAttachment(ar.Path, typ, d.Key())
		if err != nil {
			return nil, err
		}
		if err := d.Attach(a); err != nil {
			return nil, err
		}
	}
	return d, nil
}
