package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fieldnotes-md/fieldnotes/internal/application"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// writeTimeout bounds how long a tool call waits for its queued write.
const writeTimeout = 30 * time.Second

// Server wraps the MCP server with field-notes tools
type Server struct {
	server *mcp.Server
	app    *application.App
}

// NewServer creates a new MCP server instance over an opened app
func NewServer(app *application.App, version string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "fieldnotes",
		Version: version,
	}, nil)

	s := &Server{
		server: mcpServer,
		app:    app,
	}

	s.registerTools()

	return s
}

// Run serves tools over stdio until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_note",
		Description: "Write down a new observation, stamped with the current time",
	}, s.handleNote)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_list",
		Description: "List observations in time order, optionally filtered by date range and tags",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_show",
		Description: "Show one observation with its tags and attachments",
	}, s.handleShow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_rename",
		Description: "Change the suspected species of an observation",
	}, s.handleRename)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_retag",
		Description: "Replace all tags of an observation",
	}, s.handleRetag)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_tag",
		Description: "Add one tag to an observation",
	}, s.handleTag)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_tags",
		Description: "List every known tag with its full path",
	}, s.handleTags)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_attach",
		Description: "Attach an existing image or audio file to an observation",
	}, s.handleAttach)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fieldnotes_detach",
		Description: "Remove attachments by path",
	}, s.handleDetach)
}

// Input/Output types for each tool

type NoteInput struct {
	Suspicion  string   `json:"suspicion" jsonschema:"Suspected species or kind of what was observed"`
	Comment    *string  `json:"comment,omitempty" jsonschema:"Free text comment"`
	Determined *bool    `json:"determined,omitempty" jsonschema:"Whether the identification is certain"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Tag paths such as bird/raptor; missing tags are created"`
	Latitude   *float64 `json:"latitude,omitempty" jsonschema:"Latitude in degrees, requires longitude"`
	Longitude  *float64 `json:"longitude,omitempty" jsonschema:"Longitude in degrees, requires latitude"`
	Image      *string  `json:"image,omitempty" jsonschema:"Path of an image file to attach"`
	Audio      *string  `json:"audio,omitempty" jsonschema:"Path of an audio file to attach"`
}

type NoteOutput struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

type ListInput struct {
	From  *string  `json:"from,omitempty" jsonschema:"Earliest day (YYYY-MM-DD) or instant (RFC 3339), inclusive"`
	To    *string  `json:"to,omitempty" jsonschema:"Latest day (YYYY-MM-DD) or instant (RFC 3339), inclusive"`
	Tags  []string `json:"tags,omitempty" jsonschema:"Tag contents that must all match; descendants count"`
	Pages *int     `json:"pages,omitempty" jsonschema:"Number of pages to load, 1 by default"`
}

type ListOutput struct {
	Observations []Summary `json:"observations"`
	HasMore      bool      `json:"hasMore"`
}

type Summary struct {
	Key                string          `json:"key"`
	Time               string          `json:"time"`
	Suspicion          string          `json:"suspicion"`
	Comment            string          `json:"comment,omitempty"`
	Determined         bool            `json:"determined"`
	ImagesAttached     bool            `json:"imagesAttached"`
	RecordingsAttached bool            `json:"recordingsAttached"`
	Location           *model.Location `json:"location,omitempty"`
}

type KeyInput struct {
	Key string `json:"key" jsonschema:"Observation key as returned by fieldnotes_note or fieldnotes_list"`
}

type ShowOutput struct {
	Observation Summary          `json:"observation"`
	Tags        []string         `json:"tags"`
	Attachments []AttachmentInfo `json:"attachments"`
}

type AttachmentInfo struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type RenameInput struct {
	Key       string `json:"key" jsonschema:"Observation key"`
	Suspicion string `json:"suspicion" jsonschema:"The new suspected species"`
}

type RetagInput struct {
	Key  string   `json:"key" jsonschema:"Observation key"`
	Tags []string `json:"tags" jsonschema:"Tag paths replacing the current tags; empty removes all"`
}

type TagInput struct {
	Key string `json:"key" jsonschema:"Observation key"`
	Tag string `json:"tag" jsonschema:"Tag path such as bird/raptor"`
}

type TagsInput struct{}

type TagsOutput struct {
	Tags []TagInfo `json:"tags"`
}

type TagInfo struct {
	Content string `json:"content"`
	Parent  string `json:"parent,omitempty"`
	Path    string `json:"path"`
}

type AttachInput struct {
	Key  string `json:"key" jsonschema:"Observation key"`
	Path string `json:"path" jsonschema:"Path of the media file"`
	Type string `json:"type" jsonschema:"IMAGE or AUDIO"`
}

type DetachInput struct {
	Paths []string `json:"paths" jsonschema:"Paths of the attachments to remove"`
}

type WriteOutput struct {
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// Tool handlers

func (s *Server) handleNote(ctx context.Context, req *mcp.CallToolRequest, input NoteInput) (*mcp.CallToolResult, NoteOutput, error) {
	sub := usecase.Submission{
		Suspicion: input.Suspicion,
		Tags:      input.Tags,
	}
	if input.Comment != nil {
		sub.Comment = *input.Comment
	}
	if input.Determined != nil {
		sub.Determined = *input.Determined
	}
	if input.Image != nil {
		sub.ImagePath = *input.Image
	}
	if input.Audio != nil {
		sub.AudioPath = *input.Audio
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, NoteOutput{}, fmt.Errorf("latitude and longitude must be given together")
	}
	if input.Latitude != nil {
		loc, err := model.NewLocation(*input.Latitude, *input.Longitude)
		if err != nil {
			return nil, NoteOutput{}, err
		}
		sub.Location = loc
	}

	receipt, err := s.app.Recorder.Submit(ctx, sub)
	if err != nil {
		return nil, NoteOutput{}, fmt.Errorf("failed to write down observation: %w", err)
	}
	if err := wait(ctx, receipt.Write); err != nil {
		return nil, NoteOutput{}, fmt.Errorf("failed to write down observation: %w", err)
	}

	return nil, NoteOutput{
		Message: "Observation written down",
		Key:     receipt.Key.String(),
	}, nil
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	filter := usecase.FilterRequest{Tags: input.Tags}
	if input.From != nil {
		filter.From = *input.From
	}
	if input.To != nil {
		filter.To = *input.To
	}
	criteria, err := usecase.BuildFilter(ctx, s.app.Tags, filter)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("invalid filter: %w", err)
	}

	stream := s.app.Observations.Filtered(criteria)
	if input.Pages != nil {
		for i := 1; i < *input.Pages; i++ {
			stream.LoadMore()
		}
	}
	page, err := stream.Get(ctx)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("failed to list observations: %w", err)
	}

	out := ListOutput{Observations: make([]Summary, 0, len(page.Items)), HasMore: page.HasMore}
	for _, obs := range page.Items {
		out.Observations = append(out.Observations, summarize(obs))
	}
	return nil, out, nil
}

func (s *Server) handleShow(ctx context.Context, req *mcp.CallToolRequest, input KeyInput) (*mcp.CallToolResult, ShowOutput, error) {
	key, err := model.ParseKey(input.Key)
	if err != nil {
		return nil, ShowOutput{}, err
	}
	detailed, err := s.app.Observations.Detail(ctx, key)
	if err != nil {
		return nil, ShowOutput{}, fmt.Errorf("failed to read observation: %w", err)
	}

	out := ShowOutput{
		Observation: summarize(detailed.Summary()),
		Tags:        []string{},
		Attachments: []AttachmentInfo{},
	}
	for _, tag := range detailed.Tags() {
		path, err := s.tagPath(ctx, tag)
		if err != nil {
			return nil, ShowOutput{}, err
		}
		out.Tags = append(out.Tags, path)
	}
	for _, a := range detailed.Attachments() {
		out.Attachments = append(out.Attachments, AttachmentInfo{Path: a.Path(), Type: a.Type().String()})
	}
	return nil, out, nil
}

func (s *Server) handleRename(ctx context.Context, req *mcp.CallToolRequest, input RenameInput) (*mcp.CallToolResult, WriteOutput, error) {
	key, err := model.ParseKey(input.Key)
	if err != nil {
		return nil, WriteOutput{}, err
	}
	renamed, future, err := s.app.Recorder.Rename(ctx, key, input.Suspicion)
	if err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to rename observation: %w", err)
	}
	if err := wait(ctx, future); err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to rename observation: %w", err)
	}
	return nil, WriteOutput{
		Message: fmt.Sprintf("Renamed to %s", input.Suspicion),
		Key:     renamed.String(),
	}, nil
}

func (s *Server) handleRetag(ctx context.Context, req *mcp.CallToolRequest, input RetagInput) (*mcp.CallToolResult, WriteOutput, error) {
	key, err := model.ParseKey(input.Key)
	if err != nil {
		return nil, WriteOutput{}, err
	}
	future, err := s.app.Recorder.Retag(key, input.Tags...)
	if err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to retag observation: %w", err)
	}
	if err := wait(ctx, future); err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to retag observation: %w", err)
	}
	return nil, WriteOutput{
		Message: fmt.Sprintf("Observation now has %d tag(s)", len(input.Tags)),
		Key:     key.String(),
	}, nil
}

func (s *Server) handleTag(ctx context.Context, req *mcp.CallToolRequest, input TagInput) (*mcp.CallToolResult, WriteOutput, error) {
	key, err := model.ParseKey(input.Key)
	if err != nil {
		return nil, WriteOutput{}, err
	}
	future, err := s.app.Recorder.Tag(key, input.Tag)
	if err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to tag observation: %w", err)
	}
	if err := wait(ctx, future); err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to tag observation: %w", err)
	}
	return nil, WriteOutput{
		Message: fmt.Sprintf("Tagged with %s", input.Tag),
		Key:     key.String(),
	}, nil
}

func (s *Server) handleTags(ctx context.Context, req *mcp.CallToolRequest, input TagsInput) (*mcp.CallToolResult, TagsOutput, error) {
	tags, err := s.app.Tags.All().Get(ctx)
	if err != nil {
		return nil, TagsOutput{}, fmt.Errorf("failed to list tags: %w", err)
	}

	out := TagsOutput{Tags: make([]TagInfo, 0, len(tags))}
	for _, tag := range tags {
		path, err := s.tagPath(ctx, tag)
		if err != nil {
			return nil, TagsOutput{}, err
		}
		parent, _ := tag.Parent()
		out.Tags = append(out.Tags, TagInfo{Content: tag.Content(), Parent: parent, Path: path})
	}
	return nil, out, nil
}

func (s *Server) handleAttach(ctx context.Context, req *mcp.CallToolRequest, input AttachInput) (*mcp.CallToolResult, WriteOutput, error) {
	key, err := model.ParseKey(input.Key)
	if err != nil {
		return nil, WriteOutput{}, err
	}
	typ, err := model.ParseAttachmentType(input.Type)
	if err != nil {
		return nil, WriteOutput{}, err
	}
	future, err := s.app.Recorder.Attach(key, input.Path, typ)
	if err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to attach file: %w", err)
	}
	if err := wait(ctx, future); err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to attach file: %w", err)
	}
	return nil, WriteOutput{
		Message: fmt.Sprintf("Attached %s", input.Path),
		Key:     key.String(),
	}, nil
}

func (s *Server) handleDetach(ctx context.Context, req *mcp.CallToolRequest, input DetachInput) (*mcp.CallToolResult, WriteOutput, error) {
	if len(input.Paths) == 0 {
		return nil, WriteOutput{}, fmt.Errorf("no paths given")
	}
	future, err := s.app.Recorder.Detach(ctx, input.Paths...)
	if err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to detach: %w", err)
	}
	if err := wait(ctx, future); err != nil {
		return nil, WriteOutput{}, fmt.Errorf("failed to detach: %w", err)
	}
	return nil, WriteOutput{
		Message: fmt.Sprintf("Removed %d attachment(s)", len(input.Paths)),
	}, nil
}

func (s *Server) tagPath(ctx context.Context, tag model.Tag) (string, error) {
	if _, ok := tag.Parent(); !ok {
		return tag.Content(), nil
	}
	ancestors, err := s.app.Tags.Ancestors(ctx, tag)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tag %s: %w", tag.Content(), err)
	}
	return usecase.FormatTag(tag, ancestors), nil
}

func summarize(obs model.Observation) Summary {
	comment, _ := obs.Comment()
	return Summary{
		Key:                obs.Key().String(),
		Time:               obs.Time().Format(time.RFC3339),
		Suspicion:          obs.Suspicion(),
		Comment:            comment,
		Determined:         obs.Determined(),
		ImagesAttached:     obs.ImagesAttached(),
		RecordingsAttached: obs.RecordingsAttached(),
		Location:           obs.Location(),
	}
}

// wait blocks for a queued write. Giving up does not cancel the write.
func wait(ctx context.Context, f *workqueue.Future) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return f.Wait(ctx)
}
