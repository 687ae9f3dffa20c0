package cmd

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"linkcheck-step/config"
	"linkcheck-step/internal/history"
)

var errHistoryDisabled = errors.New("history disabled: HISTORY_DSN unset or unreachable")

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent check runs from the history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg   *config.Config
				store *history.Store
			)
			return withApp(cmd.Context(), v, func(ctx context.Context) error {
				if !store.Enabled() {
					return errHistoryDisabled
				}
				runs, err := store.Recent(ctx, cfg.URL, limit)
				if err != nil {
					return err
				}
				return renderRuns(cmd.OutOrStdout(), runs)
			}, &cfg, &store)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func renderRuns(w io.Writer, runs []history.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.FinishedAt.Format(time.RFC3339),
			r.TargetURL,
			r.Readiness,
			strconv.FormatBool(r.Success),
			strconv.Itoa(r.ExitCode),
			strconv.Itoa(r.BrokenLinksCount),
			r.ID,
		})
	}
	return markdown.NewMarkdown(w).
		Table(markdown.TableSet{
			Header: []string{"Finished", "URL", "Readiness", "Success", "Exit", "Broken", "Run ID"},
			Rows:   rows,
		}).
		Build()
}
