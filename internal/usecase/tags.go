package usecase

import (
	"strings"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

// TagPathSeparator separates the levels of a tag path such as "bird/raptor".
const TagPathSeparator = "/"

// ParseTagPath turns "animal/bird/raptor" into the chain animal, bird, raptor,
// root first, each tag parented by the one before it. Segments are trimmed.
func ParseTagPath(path string) ([]model.Tag, error) {
	parts := strings.Split(path, TagPathSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	chain := make([]model.Tag, 0, len(parts))

	root, err := model.NewTag(parts[0])
	if err != nil {
		return nil, err
	}
	chain = append(chain, root)

	for _, part := range parts[1:] {
		child, err := chain[len(chain)-1].SubTag(part)
		if err != nil {
			return nil, err
		}
		chain = append(chain, child)
	}
	return chain, nil
}

// FormatTag renders tag with its known ancestors, nearest first, as a path.
func FormatTag(tag model.Tag, ancestors []model.Tag) string {
	parts := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parts = append(parts, ancestors[i].Content())
	}
	parts = append(parts, tag.Content())
	return strings.Join(parts, TagPathSeparator)
}
