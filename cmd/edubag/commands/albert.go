package commands

import (
	"fmt"
	"strings"

	"edubag/lib/clients"
	"edubag/lib/gmail"
	"edubag/lib/scrapers/albert"
	"edubag/lib/timezone"
	"edubag/services/exportlog"

	"github.com/spf13/cobra"
)

var albertOut *string
var gmailFilterLabel *string
var gmailFilterOut *string

func init() {
	albertOut = albertRostersCmd.Flags().String("out", "", "The directory to save rosters to. Defaults to save_dir from the config.")
	gmailFilterLabel = albertGmailFilterCmd.Flags().String("label", "", "The Gmail label to apply. Defaults to the roster's course and semester.")
	gmailFilterOut = albertGmailFilterCmd.Flags().String("out", "", "The file to write the filter feed to. Defaults to a name derived from the roster.")
	albertCmd.AddCommand(albertRostersCmd)
	albertCmd.AddCommand(albertGmailFilterCmd)
	rootCmd.AddCommand(albertCmd)
}

var albertCmd = &cobra.Command{
	Use:   "albert",
	Short: "Commands for the Albert student information system.",
}

var albertRostersCmd = &cobra.Command{
	Use:   "rosters <course name> <term>",
	Short: "Downloads the class roster of every section of a course, e.g. `rosters \"Calculus I\" Fall 2025`.",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		courseName := args[0]
		term, err := albert.ParseTerm(strings.Join(args[1:], " "))
		if err != nil {
			fatal("invalid term", err)
		}
		saveDir := cfg.SaveDir
		if *albertOut != "" {
			saveDir = *albertOut
		}

		client := albertClient(cfg)
		start := timezone.Now()
		paths, err := client.FetchAndSaveRosters(cmd.Context(), courseName, term, saveDir, clients.DefaultExportOptions())
		recordRun(cmd.Context(), cfg, exportlog.RecordParams{
			Platform:  albert.Platform,
			Operation: "rosters",
			Course:    courseName,
			Files:     paths,
			StartedAt: start,
			Err:       err,
		})
		if err != nil {
			fatal("failed to download rosters", err)
		}

		printFiles(paths)
	},
}

var albertGmailFilterCmd = &cobra.Command{
	Use:   "gmail-filter <roster.xls>...",
	Short: "Generates a Gmail filter feed that labels mail from rostered students.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var rosters []*albert.Roster
		for _, path := range args {
			roster, err := albert.ParseRosterFile(path)
			if err != nil {
				fatal(fmt.Sprintf("failed to parse roster %q", path), err)
			}
			rosters = append(rosters, roster)
		}

		path, err := gmail.WriteFilterFile(rosters, *gmailFilterLabel, *gmailFilterOut)
		if err != nil {
			fatal("failed to write the filter feed", err)
		}

		printFiles([]string{path})
	},
}
