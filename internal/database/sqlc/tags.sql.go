package sqldb

import (
	"context"
	"database/sql"
)

const insertTagOrIgnore = `INSERT OR IGNORE INTO tags (tag, parent) VALUES (?, ?)`

type InsertTagParams struct {
	Tag    string
	Parent sql.NullString
}

// InsertTagOrIgnore returns 0 when the tag already existed.
func (q *Queries) InsertTagOrIgnore(ctx context.Context, arg InsertTagParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertTagOrIgnore, arg.Tag, arg.Parent)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getTag = `SELECT tag, parent FROM tags WHERE tag = ?`

func (q *Queries) GetTag(ctx context.Context, tag string) (Tag, error) {
	row := q.db.QueryRowContext(ctx, getTag, tag)
	var i Tag
	err := row.Scan(&i.Tag, &i.Parent)
	return i, err
}

const listTags = `SELECT tag, parent FROM tags ORDER BY tag`

func (q *Queries) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTags)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}

// The starting tag itself is excluded; depth orders nearest parent first.
const listTagAncestors = `WITH RECURSIVE ancestors(tag, parent, depth) AS (
    SELECT t.tag, t.parent, 0 FROM tags t WHERE t.tag = ?
    UNION
    SELECT p.tag, p.parent, a.depth + 1 FROM tags p JOIN ancestors a ON p.tag = a.parent
)
SELECT tag, parent FROM ancestors WHERE depth > 0 ORDER BY depth`

func (q *Queries) ListTagAncestors(ctx context.Context, tag string) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx, listTagAncestors, tag)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]Tag, error) {
	defer rows.Close()
	var items []Tag
	for rows.Next() {
		var i Tag
		if err := rows.Scan(&i.Tag, &i.Parent); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
