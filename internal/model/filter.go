package model

import (
	"slices"
	"strings"
	"time"
)

// FilterCriteria selects observations by an inclusive time range and a set of
// required tags. The zero value matches everything.
type FilterCriteria struct {
	from *time.Time
	to   *time.Time
	tags []Tag
}

// From returns the inclusive lower bound, if any.
func (c FilterCriteria) From() (time.Time, bool) {
	if c.from == nil {
		return time.Time{}, false
	}
	return *c.from, true
}

// To returns the inclusive upper bound, if any.
func (c FilterCriteria) To() (time.Time, bool) {
	if c.to == nil {
		return time.Time{}, false
	}
	return *c.to, true
}

// Tags returns the required tags ordered by content.
func (c FilterCriteria) Tags() []Tag {
	return slices.Clone(c.tags)
}

func (c FilterCriteria) IsEmpty() bool {
	return c.from == nil && c.to == nil && len(c.tags) == 0
}

// FilterBuilder collects criteria; Build validates them.
type FilterBuilder struct {
	from *time.Time
	to   *time.Time
	tags map[string]Tag
	err  error
}

func NewFilter() *FilterBuilder {
	return &FilterBuilder{tags: map[string]Tag{}}
}

func (b *FilterBuilder) StartingOn(t time.Time) *FilterBuilder {
	t = t.UTC()
	b.from = &t
	return b
}

func (b *FilterBuilder) EndingOn(t time.Time) *FilterBuilder {
	t = t.UTC()
	b.to = &t
	return b
}

func (b *FilterBuilder) WithTags(tags ...Tag) *FilterBuilder {
	for _, t := range tags {
		if t.IsZero() {
			if b.err == nil {
				b.err = invalid("filter tags", "must not contain empty tags")
			}
			continue
		}
		b.tags[t.content] = t
	}
	return b
}

// Build fails when the range is inverted. Equal bounds are allowed.
func (b *FilterBuilder) Build() (FilterCriteria, error) {
	if b.err != nil {
		return FilterCriteria{}, b.err
	}
	if b.from != nil && b.to != nil && b.from.After(*b.to) {
		return FilterCriteria{}, invalid("filter range", "from %s is after to %s",
			b.from.Format(time.RFC3339), b.to.Format(time.RFC3339))
	}
	c := FilterCriteria{from: b.from, to: b.to}
	for _, t := range b.tags {
		c.tags = append(c.tags, t)
	}
	slices.SortFunc(c.tags, func(a, b Tag) int { return strings.Compare(a.content, b.content) })
	return c, nil
}
