package model

import (
	"fmt"
	"strings"
)

// AttachmentType is the kind of media an attachment references.
type AttachmentType int

const (
	Image AttachmentType = iota + 1
	Audio
)

func (t AttachmentType) String() string {
	switch t {
	case Image:
		return "IMAGE"
	case Audio:
		return "AUDIO"
	default:
		return fmt.Sprintf("AttachmentType(%d)", int(t))
	}
}

// Valid reports whether t is a known type.
func (t AttachmentType) Valid() bool {
	return t == Image || t == Audio
}

// ParseAttachmentType accepts the stored names and their lower-case forms.
func ParseAttachmentType(s string) (AttachmentType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IMAGE":
		return Image, nil
	case "AUDIO":
		return Audio, nil
	default:
		return 0, invalid("attachment type", "unknown type %q", s)
	}
}

// Attachment references a media file owned by one observation.
type Attachment struct {
	path  string
	typ   AttachmentType
	owner Key
}

func NewAttachment(path string, typ AttachmentType, owner Key) (Attachment, error) {
	if strings.TrimSpace(path) == "" {
		return Attachment{}, invalid("attachment path", "must not be empty")
	}
	if !typ.Valid() {
		return Attachment{}, invalid("attachment type", "unknown type %d", int(typ))
	}
	if owner.IsZero() {
		return Attachment{}, invalid("attachment owner", "must be set")
	}
	return Attachment{path: path, typ: typ, owner: owner}, nil
}

func (a Attachment) Path() string         { return a.path }
func (a Attachment) Type() AttachmentType { return a.typ }
func (a Attachment) Owner() Key           { return a.owner }

// reowned returns a copy pointing at a renamed owner.
func (a Attachment) reowned(owner Key) Attachment {
	a.owner = owner
	return a
}
