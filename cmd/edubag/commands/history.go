package commands

import (
	"os"
	"strings"

	"edubag/lib/notify"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit *int
var notifyLimit *int

func init() {
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "The number of runs to show.")
	notifyLimit = notifyCmd.Flags().IntP("limit", "n", 10, "The number of runs to include in the summary.")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(notifyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Shows recent export runs, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		service, cleanup := openExportLog(cfg)
		defer cleanup()

		runs, err := service.History(cmd.Context(), *historyLimit)
		if err != nil {
			fatal("failed to read the export log", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Finished", "Platform", "Operation", "Course", "Status", "Files"})
		for _, run := range runs {
			detail := strings.Join(run.Files, "\n")
			if run.Detail != "" {
				detail = run.Detail
			}
			t.AppendRow(table.Row{
				run.FinishedAt.Format("Jan 2 15:04"),
				run.Platform,
				run.Operation,
				run.Course,
				string(run.Status),
				detail,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Emails a summary of recent export runs to the configured recipients.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if cfg.Smtp.Server == "" {
			fatal("missing smtp config", os.ErrInvalid)
		}
		if len(cfg.NotifyTo) == 0 {
			fatal("missing notify_to recipients in config", os.ErrInvalid)
		}

		service, cleanup := openExportLog(cfg)
		defer cleanup()

		runs, err := service.History(cmd.Context(), *notifyLimit)
		if err != nil {
			fatal("failed to read the export log", err)
		}

		summaries := make([]notify.RunSummary, len(runs))
		for i, run := range runs {
			summaries[i] = notify.RunSummary{
				Platform:   run.Platform,
				Operation:  run.Operation,
				Course:     run.Course,
				Status:     string(run.Status),
				Detail:     run.Detail,
				Files:      run.Files,
				FinishedAt: run.FinishedAt,
			}
		}

		mailer := notify.NewMailer(cfg.Smtp)
		err = mailer.SendExportSummary(cmd.Context(), cfg.NotifyTo, summaries)
		if err != nil {
			fatal("failed to send the summary email", err)
		}
	},
}
