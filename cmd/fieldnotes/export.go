package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of every tag and observation",
		Long:  "Write a zstd-compressed JSON lines snapshot of every tag and observation to a file or stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			stats, err := app.Export(commandContext(cmd), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d tag(s) and %d observation(s)\n", stats.Tags, stats.Observations)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replay a snapshot written by export",
		Long:  "Replay a snapshot written by export. Existing observations with the same key are replaced; tags are merged.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			stats, err := app.Import(commandContext(cmd), r)
			fmt.Fprintf(cmd.ErrOrStderr(), "imported %d tag(s) and %d observation(s), %d failed\n",
				stats.Tags, stats.Observations, stats.Failed)
			return err
		},
	}

	return cmd
}
