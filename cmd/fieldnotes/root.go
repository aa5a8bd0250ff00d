package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/application"
	"github.com/fieldnotes-md/fieldnotes/internal/config"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// writeTimeout bounds how long a command waits for its queued write.
const writeTimeout = 30 * time.Second

var configFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fieldnotes",
		Short:        "fieldnotes - a notebook for nature observations",
		Long:         "fieldnotes records what you saw, where and when, with tags, photos and sound recordings.",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: config.yaml in the data directory)")

	rootCmd.AddCommand(newNoteCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newRetagCmd())
	rootCmd.AddCommand(newTagCmd())
	rootCmd.AddCommand(newAttachCmd())
	rootCmd.AddCommand(newDetachCmd())
	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newMCPCmd())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

// openApp loads the configuration, lets adjust change it, and opens the app.
func openApp(cmd *cobra.Command, adjust func(*config.Config)) (*application.App, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(conf)
	}
	return application.Open(*conf, application.WithLogOutput(cmd.ErrOrStderr()))
}

func closeApp(cmd *cobra.Command, app *application.App) {
	if err := app.Close(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
	}
}

// waitWrite blocks until a queued write has run and reports its result.
func waitWrite(ctx context.Context, f *workqueue.Future) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return f.Wait(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
