package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
)

func newNoteCmd() *cobra.Command {
	var (
		comment    string
		determined bool
		tags       []string
		latitude   float64
		longitude  float64
		imagePath  string
		audioPath  string
	)

	cmd := &cobra.Command{
		Use:   "note <suspicion>",
		Short: "Write down a new observation",
		Long:  "Write down a new observation stamped with the current time. Tags are paths such as bird/raptor; missing tags are created.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := usecase.Submission{
				Suspicion:  args[0],
				Comment:    comment,
				Determined: determined,
				Tags:       tags,
				ImagePath:  imagePath,
				AudioPath:  audioPath,
			}

			latSet := cmd.Flags().Changed("lat")
			lonSet := cmd.Flags().Changed("lon")
			if latSet != lonSet {
				return errors.New("--lat and --lon must be given together")
			}
			if latSet {
				loc, err := model.NewLocation(latitude, longitude)
				if err != nil {
					return err
				}
				sub.Location = loc
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)
			receipt, err := app.Recorder.Submit(ctx, sub)
			if err != nil {
				return err
			}
			if err := waitWrite(ctx, receipt.Write); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), receipt.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Free text comment")
	cmd.Flags().BoolVarP(&determined, "determined", "d", false, "Mark the identification as certain")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag path, repeatable (e.g. -t bird/raptor -t field)")
	cmd.Flags().Float64Var(&latitude, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&longitude, "lon", 0, "Longitude in degrees")
	cmd.Flags().StringVar(&imagePath, "image", "", "Image file to attach")
	cmd.Flags().StringVar(&audioPath, "audio", "", "Audio file to attach")

	return cmd
}
