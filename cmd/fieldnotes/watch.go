package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
)

func newWatchCmd() *cobra.Command {
	var (
		from  string
		to    string
		tags  []string
		pages int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow observations and redraw whenever they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			criteria, err := usecase.BuildFilter(ctx, app.Tags, usecase.FilterRequest{From: from, To: to, Tags: tags})
			if err != nil {
				return err
			}

			stream := app.Observations.Filtered(criteria)
			for i := 1; i < pages; i++ {
				stream.LoadMore()
			}

			for update := range stream.Watch(ctx) {
				if update.Err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", update.Err)
					continue
				}
				fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")
				outputTable(cmd, update.Value.Items)
				if update.Value.HasMore {
					fmt.Fprintln(cmd.OutOrStdout(), "...")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Earliest day (YYYY-MM-DD) or instant (RFC 3339), inclusive")
	cmd.Flags().StringVar(&to, "to", "", "Latest day (YYYY-MM-DD) or instant (RFC 3339), inclusive")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Required tag, repeatable; descendants match too")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to follow")

	return cmd
}
