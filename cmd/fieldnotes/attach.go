package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

func newAttachCmd() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "attach <key> <file>",
		Short: "Attach an existing image or audio file to an observation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := model.ParseKey(args[0])
			if err != nil {
				return err
			}
			typ, err := model.ParseAttachmentType(typeName)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			future, err := app.Recorder.Attach(key, path, typ)
			if err != nil {
				return err
			}
			if err := waitWrite(commandContext(cmd), future); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "image", "Attachment type: image or audio")

	return cmd
}

func newDetachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detach <file>...",
		Short: "Remove attachments by path",
		Long:  "Remove attachments by path. The files themselves are left alone.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)
			future, err := app.Recorder.Detach(ctx, args...)
			if err != nil {
				return err
			}
			return waitWrite(ctx, future)
		},
	}

	return cmd
}

func newCaptureCmd() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "capture <key>",
		Short: "Create a new media file for an observation and print its path",
		Long:  "Create a new, empty media file in the media directory, attach it to the observation and print its path so a recorder can write to it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := model.ParseKey(args[0])
			if err != nil {
				return err
			}
			typ, err := model.ParseAttachmentType(typeName)
			if err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)
			attachment, future, err := app.Recorder.Capture(ctx, key, typ)
			if err != nil {
				return err
			}
			if err := waitWrite(ctx, future); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), attachment.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "image", "Attachment type: image or audio")

	return cmd
}
