package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
)

func newRetagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retag <key> [tag...]",
		Short: "Replace all tags of an observation",
		Long:  "Replace all tags of an observation. Without tags, every tag is removed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := model.ParseKey(args[0])
			if err != nil {
				return err
			}
			if err := parseTagArgs(args[1:]); err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			future, err := app.Recorder.Retag(key, args[1:]...)
			if err != nil {
				return err
			}
			return waitWrite(commandContext(cmd), future)
		},
	}

	return cmd
}

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	cmd.AddCommand(newTagAddCmd())
	cmd.AddCommand(newTagListCmd())

	return cmd
}

func newTagAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <key> <tag>",
		Short: "Add one tag to an observation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := model.ParseKey(args[0])
			if err != nil {
				return err
			}
			if err := parseTagArgs(args[1:]); err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			future, err := app.Recorder.Tag(key, args[1])
			if err != nil {
				return err
			}
			return waitWrite(commandContext(cmd), future)
		},
	}

	return cmd
}

type tagJSON struct {
	Content string `json:"content"`
	Parent  string `json:"parent,omitempty"`
	Path    string `json:"path"`
}

func newTagListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every tag with its full path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)
			tags, err := app.Tags.All().Get(ctx)
			if err != nil {
				return err
			}
			paths, err := formatTags(ctx, app, tags)
			if err != nil {
				return err
			}

			if format == "json" {
				out := make([]tagJSON, 0, len(tags))
				for i, tag := range tags {
					parent, _ := tag.Parent()
					out = append(out, tagJSON{Content: tag.Content(), Parent: parent, Path: paths[i]})
				}
				return outputJSON(cmd, out)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Tag", "Path"})
			for i, tag := range tags {
				t.AppendRow(table.Row{tag.Content(), paths[i]})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

// parseTagArgs validates tag paths before anything is opened.
func parseTagArgs(paths []string) error {
	for _, p := range paths {
		if _, err := usecase.ParseTagPath(p); err != nil {
			return err
		}
	}
	return nil
}
