package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
)

func newListCmd() *cobra.Command {
	var (
		from   string
		to     string
		tags   []string
		pages  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List observations in time order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" && format != "keys" {
				return fmt.Errorf("invalid format: %s (valid values: table, json, keys)", format)
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)
			criteria, err := usecase.BuildFilter(ctx, app.Tags, usecase.FilterRequest{From: from, To: to, Tags: tags})
			if err != nil {
				return err
			}

			stream := app.Observations.Filtered(criteria)
			for i := 1; i < pages; i++ {
				stream.LoadMore()
			}
			page, err := stream.Get(ctx)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputJSON(cmd, listJSON{Observations: toListEntries(page.Items), HasMore: page.HasMore})
			case "keys":
				for _, obs := range page.Items {
					fmt.Fprintln(cmd.OutOrStdout(), obs.Key())
				}
			default:
				outputTable(cmd, page.Items)
			}
			if page.HasMore {
				fmt.Fprintf(cmd.ErrOrStderr(), "more observations available, use --pages %d\n", pages+1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Earliest day (YYYY-MM-DD) or instant (RFC 3339), inclusive")
	cmd.Flags().StringVar(&to, "to", "", "Latest day (YYYY-MM-DD) or instant (RFC 3339), inclusive")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Required tag, repeatable; descendants match too")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json or keys")

	return cmd
}

type listEntry struct {
	Key        string          `json:"key"`
	Time       string          `json:"time"`
	Suspicion  string          `json:"suspicion"`
	Comment    string          `json:"comment,omitempty"`
	Determined bool            `json:"determined"`
	Images     bool            `json:"images"`
	Recordings bool            `json:"recordings"`
	Location   *model.Location `json:"location,omitempty"`
}

type listJSON struct {
	Observations []listEntry `json:"observations"`
	HasMore      bool        `json:"has_more"`
}

func toListEntries(items []model.Observation) []listEntry {
	out := make([]listEntry, 0, len(items))
	for _, obs := range items {
		comment, _ := obs.Comment()
		out = append(out, listEntry{
			Key:        obs.Key().String(),
			Time:       obs.Time().Format(time.RFC3339),
			Suspicion:  obs.Suspicion(),
			Comment:    comment,
			Determined: obs.Determined(),
			Images:     obs.ImagesAttached(),
			Recordings: obs.RecordingsAttached(),
			Location:   obs.Location(),
		})
	}
	return out
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// wrapString wraps a string to fit within maxWidth, accounting for multi-byte characters
func wrapString(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}

	s = strings.TrimSpace(s)
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	var result strings.Builder
	var currentLine strings.Builder
	currentWidth := 0

	for _, r := range s {
		charWidth := runewidth.RuneWidth(r)
		if currentWidth+charWidth > maxWidth && currentWidth > 0 {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
			currentWidth = 0
		}
		currentLine.WriteRune(r)
		currentWidth += charWidth
	}

	if currentLine.Len() > 0 {
		result.WriteString(currentLine.String())
	}

	return result.String()
}

// columnWidths holds the calculated widths for the variable columns
type columnWidths struct {
	suspicion    int
	comment      int
	useShortDate bool
}

const (
	fullDateLayout  = "2006-01-02 15:04"
	shortDateLayout = "01-02 15:04"
	flagsWidth      = 5 // "D I A"
	locationWidth   = 22
)

// calculateColumnWidths gives suspicions a single line and the comment what is left
func calculateColumnWidths(termWidth int, items []model.Observation) columnWidths {
	const numColumns = 5
	available := termWidth - numColumns*3

	suspicionWidth := 10
	for _, obs := range items {
		if w := runewidth.StringWidth(obs.Suspicion()); w > suspicionWidth {
			suspicionWidth = w
		}
	}
	if suspicionWidth > 40 {
		suspicionWidth = 40
	}

	dateWidth := len(fullDateLayout)
	commentWidth := available - dateWidth - suspicionWidth - flagsWidth - locationWidth
	useShortDate := false
	if commentWidth < 20 {
		useShortDate = true
		dateWidth = len(shortDateLayout)
		commentWidth = available - dateWidth - suspicionWidth - flagsWidth - locationWidth
	}
	if commentWidth < 15 {
		commentWidth = 15
	}

	return columnWidths{suspicion: suspicionWidth, comment: commentWidth, useShortDate: useShortDate}
}

// flags renders determined, images and audio as a compact marker column
func flags(obs model.Observation) string {
	mark := func(on bool, c string) string {
		if on {
			return c
		}
		return "-"
	}
	return strings.Join([]string{
		mark(obs.Determined(), "D"),
		mark(obs.ImagesAttached(), "I"),
		mark(obs.RecordingsAttached(), "A"),
	}, " ")
}

func outputTable(cmd *cobra.Command, items []model.Observation) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	widths := calculateColumnWidths(getTerminalWidth(), items)

	t.AppendHeader(table.Row{"Time", "Suspicion", "D I A", "Location", "Comment"})
	for _, obs := range items {
		layout := fullDateLayout
		if widths.useShortDate {
			layout = shortDateLayout
		}
		location := ""
		if loc := obs.Location(); loc != nil {
			location = loc.String()
		}
		comment, _ := obs.Comment()

		t.AppendRow(table.Row{
			obs.Time().Local().Format(layout),
			wrapString(obs.Suspicion(), widths.suspicion),
			flags(obs),
			location,
			runewidth.Truncate(strings.ReplaceAll(comment, "\n", " "), widths.comment, "..."),
		})
	}

	t.Render()
}
