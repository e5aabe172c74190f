package commands

import (
	"edubag/lib/clients"
	"edubag/lib/scrapers/brightspace"
	"edubag/lib/timezone"
	"edubag/services/exportlog"

	"github.com/spf13/cobra"
)

var brightspaceOut *string

func init() {
	brightspaceOut = brightspaceCmd.PersistentFlags().String("out", "", "The directory to save exports to. Defaults to save_dir from the config.")
	brightspaceCmd.AddCommand(brightspaceGradebookCmd)
	brightspaceCmd.AddCommand(brightspaceAttendanceCmd)
	rootCmd.AddCommand(brightspaceCmd)
}

var brightspaceCmd = &cobra.Command{
	Use:   "brightspace",
	Short: "Commands for the Brightspace learning management system.",
}

func brightspaceSaveDir(cfg Config) string {
	if *brightspaceOut != "" {
		return *brightspaceOut
	}
	return cfg.SaveDir
}

var brightspaceGradebookCmd = &cobra.Command{
	Use:   "gradebook <course id or url>",
	Short: "Downloads the gradebook of a course as CSV.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := brightspaceClient(cfg)

		start := timezone.Now()
		paths, err := client.SaveGradebook(cmd.Context(), args[0], brightspaceSaveDir(cfg), clients.DefaultExportOptions())
		recordRun(cmd.Context(), cfg, exportlog.RecordParams{
			Platform:  brightspace.Platform,
			Operation: "gradebook",
			Course:    args[0],
			Files:     paths,
			StartedAt: start,
			Err:       err,
		})
		if err != nil {
			fatal("failed to download the gradebook", err)
		}

		printFiles(paths)
	},
}

var brightspaceAttendanceCmd = &cobra.Command{
	Use:   "attendance <course id or url>",
	Short: "Downloads every attendance register of a course as CSV.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := brightspaceClient(cfg)

		start := timezone.Now()
		paths, err := client.SaveAttendance(cmd.Context(), args[0], brightspaceSaveDir(cfg), clients.DefaultExportOptions())
		recordRun(cmd.Context(), cfg, exportlog.RecordParams{
			Platform:  brightspace.Platform,
			Operation: "attendance",
			Course:    args[0],
			Files:     paths,
			StartedAt: start,
			Err:       err,
		})
		if err != nil {
			fatal("failed to download attendance", err)
		}

		printFiles(paths)
	},
}
