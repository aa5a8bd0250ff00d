package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/application"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
)

type showJSON struct {
	listEntry
	Tags        []string         `json:"tags"`
	Attachments []attachmentJSON `json:"attachments"`
}

type attachmentJSON struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

func newShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show one observation with its tags and attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := model.ParseKey(args[0])
			if err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)
			detailed, err := app.Observations.Detail(ctx, key)
			if err != nil {
				return err
			}
			tagPaths, err := formatTags(ctx, app, detailed.Tags())
			if err != nil {
				return err
			}

			switch format {
			case "json":
				out := showJSON{
					listEntry:   toListEntries([]model.Observation{detailed.Summary()})[0],
					Tags:        tagPaths,
					Attachments: []attachmentJSON{},
				}
				for _, a := range detailed.Attachments() {
					out.Attachments = append(out.Attachments, attachmentJSON{Path: a.Path(), Type: a.Type().String()})
				}
				return outputJSON(cmd, out)
			case "table":
				outputDetail(cmd, detailed, tagPaths)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

// formatTags renders each tag as its full path, root first.
func formatTags(ctx context.Context, app *application.App, tags []model.Tag) ([]string, error) {
	paths := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := tag.Parent(); !ok {
			paths = append(paths, tag.Content())
			continue
		}
		ancestors, err := app.Tags.Ancestors(ctx, tag)
		if err != nil {
			return nil, err
		}
		paths = append(paths, usecase.FormatTag(tag, ancestors))
	}
	return paths, nil
}

func outputDetail(cmd *cobra.Command, d *model.Detailed, tagPaths []string) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	comment, _ := d.Comment()
	location := ""
	if loc := d.Location(); loc != nil {
		location = loc.String()
	}

	t.AppendRow(table.Row{"Key", d.Key().String()})
	t.AppendRow(table.Row{"Time", d.Time().Local().Format(time.RFC1123)})
	t.AppendRow(table.Row{"Suspicion", d.Suspicion()})
	t.AppendRow(table.Row{"Determined", d.Determined()})
	t.AppendRow(table.Row{"Location", location})
	t.AppendRow(table.Row{"Comment", wrapString(comment, getTerminalWidth()-20)})
	for i, path := range tagPaths {
		label := ""
		if i == 0 {
			label = "Tags"
		}
		t.AppendRow(table.Row{label, path})
	}
	for i, a := range d.Attachments() {
		label := ""
		if i == 0 {
			label = "Attachments"
		}
		t.AppendRow(table.Row{label, fmt.Sprintf("%s %s", a.Type(), a.Path())})
	}

	t.Render()
}
