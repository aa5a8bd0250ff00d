package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

const dayLayout = "2006-01-02"

// TagFinder resolves stored tags by content.
type TagFinder interface {
	Find(ctx context.Context, content string) (model.Tag, error)
}

// FilterRequest is a filter as typed by a user. Dates are either a calendar
// day (2024-05-11) or an RFC 3339 instant; a day bound covers the whole day.
type FilterRequest struct {
	From string
	To   string
	Tags []string
}

// BuildFilter resolves r into criteria. Tags must already be stored.
func BuildFilter(ctx context.Context, tags TagFinder, r FilterRequest) (model.FilterCriteria, error) {
	b := model.NewFilter()
	if r.From != "" {
		from, err := parseBound(r.From, false)
		if err != nil {
			return model.FilterCriteria{}, err
		}
		b.StartingOn(from)
	}
	if r.To != "" {
		to, err := parseBound(r.To, true)
		if err != nil {
			return model.FilterCriteria{}, err
		}
		b.EndingOn(to)
	}
	for _, content := range r.Tags {
		tag, err := tags.Find(ctx, strings.TrimSpace(content))
		if err != nil {
			return model.FilterCriteria{}, err
		}
		b.WithTags(tag)
	}
	return b.Build()
}

func parseBound(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD or RFC 3339, got " + s}
	}
	if end {
		return day.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	}
	return day, nil
}
