// Package model defines the field-notes entities and the invariants that bind them.
package model

import (
	"slices"
	"strings"
	"time"
)

// Clock supplies the time stamped on new observations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Observation is the summary form of an observation: its own columns without
// tags or attachments. Equality is defined by Key alone.
type Observation struct {
	key                Key
	comment            string
	determined         bool
	imagesAttached     bool
	recordingsAttached bool
	location           *Location
}

// RestoreObservation rebuilds a summary from stored columns.
func RestoreObservation(key Key, comment string, determined, imagesAttached, recordingsAttached bool, location *Location) Observation {
	return Observation{
		key:                key,
		comment:            comment,
		determined:         determined,
		imagesAttached:     imagesAttached,
		recordingsAttached: recordingsAttached,
		location:           copyLocation(location),
	}
}

func (o Observation) Key() Key             { return o.key }
func (o Observation) Time() time.Time      { return o.key.Time() }
func (o Observation) Suspicion() string    { return o.key.Suspicion() }
func (o Observation) Determined() bool     { return o.determined }
func (o Observation) ImagesAttached() bool { return o.imagesAttached }

func (o Observation) RecordingsAttached() bool { return o.recordingsAttached }

// Comment returns the comment and whether one is present.
func (o Observation) Comment() (string, bool) {
	return o.comment, o.comment != ""
}

// Location returns a copy of the attached position, or nil.
func (o Observation) Location() *Location {
	return copyLocation(o.location)
}

// Equal compares identity only.
func (o Observation) Equal(other Observation) bool {
	return o.key == other.key
}

// SetComment replaces the comment. An empty comment clears it.
func (o *Observation) SetComment(comment string) {
	o.comment = comment
}

func (o *Observation) MarkDetermined() {
	o.determined = true
}

// AttachLocation sets the position; nil removes it.
func (o *Observation) AttachLocation(location *Location) {
	o.location = copyLocation(location)
}

func copyLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Detailed is an observation with its tag and attachment sets loaded.
type Detailed struct {
	Observation
	tags        map[string]Tag
	attachments map[string]Attachment
}

// NoticeNew starts a fresh observation stamped with the clock's current time.
func NoticeNew(clock Clock, suspicion, comment string) (*Detailed, error) {
	if clock == nil {
		clock = SystemClock
	}
	key, err := NewKey(clock.Now(), suspicion)
	if err != nil {
		return nil, err
	}
	return &Detailed{
		Observation: Observation{key: key, comment: comment},
		tags:        map[string]Tag{},
		attachments: map[string]Attachment{},
	}, nil
}

// NewDetailed combines a summary with its collections. The derived flags of obs
// must agree with the attachment types in both directions.
func NewDetailed(obs Observation, tags []Tag, attachments []Attachment) (*Detailed, error) {
	if obs.key.IsZero() {
		return nil, invalid("observation", "key must be set")
	}
	d := &Detailed{
		Observation: obs,
		tags:        make(map[string]Tag, len(tags)),
		attachments: make(map[string]Attachment, len(attachments)),
	}
	d.location = copyLocation(obs.location)
	for _, t := range tags {
		if t.IsZero() {
			return nil, invalid("tag", "must not be empty")
		}
		if _, ok := d.tags[t.content]; ok {
			return nil, duplicate("tag", t.content)
		}
		d.tags[t.content] = t
	}

	var images, recordings bool
	for _, a := range attachments {
		if a.owner != obs.key {
			return nil, invalid("attachment", "%q belongs to %s, not %s", a.path, a.owner, obs.key)
		}
		if _, ok := d.attachments[a.path]; ok {
			return nil, duplicate("attachment", a.path)
		}
		d.attachments[a.path] = a
		switch a.typ {
		case Image:
			images = true
		case Audio:
			recordings = true
		}
	}
	if images != obs.imagesAttached {
		return nil, invalid("imagesAttached", "flag is %t but image attachments present is %t", obs.imagesAttached, images)
	}
	if recordings != obs.recordingsAttached {
		return nil, invalid("recordingsAttached", "flag is %t but audio attachments present is %t", obs.recordingsAttached, recordings)
	}
	return d, nil
}

// Summary drops the collections.
func (d *Detailed) Summary() Observation {
	s := d.Observation
	s.location = copyLocation(d.location)
	return s
}

// Attach adds a to the attachment set and raises the matching flag.
func (d *Detailed) Attach(a Attachment) error {
	if a.path == "" || !a.typ.Valid() {
		return invalid("attachment", "must be built with NewAttachment")
	}
	if a.owner != d.key {
		return invalid("attachment", "%q belongs to %s, not %s", a.path, a.owner, d.key)
	}
	if _, ok := d.attachments[a.path]; ok {
		return duplicate("attachment", a.path)
	}
	d.attachments[a.path] = a
	switch a.typ {
	case Image:
		d.imagesAttached = true
	case Audio:
		d.recordingsAttached = true
	}
	return nil
}

// TagWith adds tags, failing without changes if any is already present.
func (d *Detailed) TagWith(tags ...Tag) error {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t.IsZero() {
			return invalid("tag", "must not be empty")
		}
		if _, ok := d.tags[t.content]; ok {
			return duplicate("tag", t.content)
		}
		if _, ok := seen[t.content]; ok {
			return duplicate("tag", t.content)
		}
		seen[t.content] = struct{}{}
	}
	for _, t := range tags {
		d.tags[t.content] = t
	}
	return nil
}

// TagIfNecessary adds the tags that are not present yet.
func (d *Detailed) TagIfNecessary(tags ...Tag) error {
	for _, t := range tags {
		if t.IsZero() {
			return invalid("tag", "must not be empty")
		}
	}
	for _, t := range tags {
		if _, ok := d.tags[t.content]; !ok {
			d.tags[t.content] = t
		}
	}
	return nil
}

// HasTag reports whether the tag with content is directly attached.
func (d *Detailed) HasTag(content string) bool {
	_, ok := d.tags[content]
	return ok
}

// Tags returns the tag set ordered by content.
func (d *Detailed) Tags() []Tag {
	out := make([]Tag, 0, len(d.tags))
	for _, t := range d.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tag) int { return strings.Compare(a.content, b.content) })
	return out
}

// Attachments returns the attachment set ordered by path.
func (d *Detailed) Attachments() []Attachment {
	out := make([]Attachment, 0, len(d.attachments))
	for _, a := range d.attachments {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Attachment) int { return strings.Compare(a.path, b.path) })
	return out
}

// Clone returns a deep copy.
func (d *Detailed) Clone() *Detailed {
	c := &Detailed{
		Observation: d.Summary(),
		tags:        make(map[string]Tag, len(d.tags)),
		attachments: make(map[string]Attachment, len(d.attachments)),
	}
	for k, v := range d.tags {
		c.tags[k] = v
	}
	for k, v := range d.attachments {
		c.attachments[k] = v
	}
	return c
}

// Renamed returns a copy keyed by suspicion, with every attachment re-owned.
func (d *Detailed) Renamed(suspicion string) (*Detailed, error) {
	key, err := d.key.WithSuspicion(suspicion)
	if err != nil {
		return nil, err
	}
	c := d.Clone()
	c.key = key
	for path, a := range c.attachments {
		c.attachments[path] = a.reowned(key)
	}
	return c, nil
}
