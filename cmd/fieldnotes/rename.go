package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

func newRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <key> <suspicion>",
		Short: "Change the suspected species of an observation",
		Long:  "Change the suspected species of an observation. Tags and attachments move with it.",
		Args:  cobra.ExactArgs(2),
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
			renamed, future, err := app.Recorder.Rename(ctx, key, args[1])
			if err != nil {
				return err
			}
			if err := waitWrite(ctx, future); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renamed)
			return nil
		},
	}

	return cmd
}
