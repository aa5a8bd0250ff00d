package database

import (
	"fmt"
	"strings"
	"time"

	sqldb "github.com/fieldnotes-md/fieldnotes/internal/database/sqlc"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

// buildFilterQuery composes the observation query for criteria. Each required
// tag gets a recursive CTE of itself plus its descendants, and the observation
// must carry at least one tag of every such set.
func buildFilterQuery(criteria model.FilterCriteria, limit, offset int) (string, []any) {
	var (
		ctes  []string
		where []string
		args  []any
	)

	for i, tag := range criteria.Tags() {
		name := fmt.Sprintf("required_%d", i)
		ctes = append(ctes, fmt.Sprintf(
			"%[1]s(tag) AS (SELECT ? UNION SELECT t.tag FROM tags t JOIN %[1]s r ON t.parent = r.tag)", name))
		args = append(args, tag.Content())
		where = append(where, fmt.Sprintf(`EXISTS (
        SELECT 1 FROM observation_tags ot
        WHERE ot.observation_time = o.time
          AND ot.observation_suspicion = o.suspicion
          AND ot.tag IN (SELECT tag FROM %s))`, name))
	}

	if from, ok := criteria.From(); ok {
		where = append(where, "o.time >= ?")
		args = append(args, ceilMillis(from))
	}
	if to, ok := criteria.To(); ok {
		where = append(where, "o.time <= ?")
		args = append(args, to.UnixMilli())
	}

	var b strings.Builder
	if len(ctes) > 0 {
		b.WriteString("WITH RECURSIVE ")
		b.WriteString(strings.Join(ctes, ",\n    "))
		b.WriteString("\n")
	}
	b.WriteString("SELECT ")
	b.WriteString(sqldb.ObservationColumns("o"))
	b.WriteString(" FROM observations o")
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, "\n  AND "))
	}
	b.WriteString("\nORDER BY o.time, o.suspicion\nLIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	return b.String(), args
}

// ceilMillis rounds t up to whole milliseconds. Stored times are whole
// milliseconds, so a lower bound inside a millisecond excludes its start.
func ceilMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if time.UnixMilli(ms).Before(t) {
		ms++
	}
	return ms
}
