package model

import "unicode/utf8"

// MinTagLength is the minimum number of runes in a tag's content.
const MinTagLength = 3

// Tag is an immutable label. Its parent is referenced by content and resolved
// through storage when needed.
type Tag struct {
	content string
	parent  string
}

// NewTag builds a root tag. Content is taken as given, whitespace included.
func NewTag(content string) (Tag, error) {
	if n := utf8.RuneCountInString(content); n < MinTagLength {
		return Tag{}, invalid("tag", "%q has %d characters, need at least %d", content, n, MinTagLength)
	}
	return Tag{content: content}, nil
}

// NewSubTag builds a tag whose parent is the tag with content parent.
func NewSubTag(parent, content string) (Tag, error) {
	p, err := NewTag(parent)
	if err != nil {
		return Tag{}, err
	}
	return p.SubTag(content)
}

// SubTag builds a child of t.
func (t Tag) SubTag(content string) (Tag, error) {
	child, err := NewTag(content)
	if err != nil {
		return Tag{}, err
	}
	if child.content == t.content {
		return Tag{}, invalid("tag", "%q cannot be its own parent", content)
	}
	child.parent = t.content
	return child, nil
}

// RestoreTag rebuilds a stored tag. An empty parent means none.
func RestoreTag(content, parent string) (Tag, error) {
	if parent == "" {
		return NewTag(content)
	}
	return NewSubTag(parent, content)
}

func (t Tag) Content() string {
	return t.content
}

// Parent returns the parent's content, if any.
func (t Tag) Parent() (string, bool) {
	return t.parent, t.parent != ""
}

func (t Tag) IsZero() bool {
	return t.content == ""
}

func (t Tag) String() string {
	return t.content
}
