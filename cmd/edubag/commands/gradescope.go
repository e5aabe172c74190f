package commands

import (
	"os"
	"strings"

	"edubag/lib/clients"
	"edubag/lib/scrapers/gradescope"
	"edubag/lib/timezone"
	"edubag/services/exportlog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var gradescopeOut *string
var gradescopeNotify *bool
var gradescopeSendRole *string

func init() {
	gradescopeOut = gradescopeRosterCmd.Flags().String("out", "", "The directory to save the roster to. Defaults to save_dir from the config.")
	gradescopeNotify = gradescopeCmd.PersistentFlags().Bool("notify", false, "Ask the platform to email affected users.")
	gradescopeSendRole = gradescopeSendCmd.Flags().String("role", "Student", "The role to enroll uploaded users as.")
	gradescopeCmd.AddCommand(gradescopeRosterCmd)
	gradescopeCmd.AddCommand(gradescopeCoursesCmd)
	gradescopeCmd.AddCommand(gradescopeSyncCmd)
	gradescopeCmd.AddCommand(gradescopeSendCmd)
	rootCmd.AddCommand(gradescopeCmd)
}

var gradescopeCmd = &cobra.Command{
	Use:   "gradescope",
	Short: "Commands for the Gradescope grading platform.",
}

var gradescopeRosterCmd = &cobra.Command{
	Use:   "roster <course id or url>",
	Short: "Downloads the course roster as CSV.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := gradescopeClient(cfg)

		saveDir := cfg.SaveDir
		if *gradescopeOut != "" {
			saveDir = *gradescopeOut
		}

		start := timezone.Now()
		paths, err := client.SaveRoster(cmd.Context(), args[0], saveDir, clients.DefaultExportOptions())
		recordRun(cmd.Context(), cfg, exportlog.RecordParams{
			Platform:  gradescope.Platform,
			Operation: "roster",
			Course:    args[0],
			Files:     paths,
			StartedAt: start,
			Err:       err,
		})
		if err != nil {
			fatal("failed to download the roster", err)
		}

		printFiles(paths)
	},
}

var gradescopeCoursesCmd = &cobra.Command{
	Use:   "courses <term>",
	Short: "Lists the courses of a term, e.g. `courses Fall 2025`.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := gradescopeClient(cfg)

		courses, err := client.FetchCourses(cmd.Context(), strings.Join(args, " "), clients.DefaultExportOptions())
		if err != nil {
			fatal("failed to list courses", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Number", "Name", "Instructors", "LMS Course"})
		for _, c := range courses {
			t.AppendRow(table.Row{
				c.CourseId,
				c.CourseNumber,
				c.CourseName,
				strings.Join(c.Instructors, ", "),
				c.LmsCourseId,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var gradescopeSyncCmd = &cobra.Command{
	Use:   "sync <course id or url>",
	Short: "Syncs the course roster from the linked LMS course.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := gradescopeClient(cfg)

		start := timezone.Now()
		err := client.SyncRoster(cmd.Context(), args[0], *gradescopeNotify, clients.DefaultExportOptions())
		recordRun(cmd.Context(), cfg, exportlog.RecordParams{
			Platform:  gradescope.Platform,
			Operation: "sync",
			Course:    args[0],
			StartedAt: start,
			Err:       err,
		})
		if err != nil {
			fatal("failed to sync the roster", err)
		}
	},
}

var gradescopeSendCmd = &cobra.Command{
	Use:   "send <course id or url> <roster.csv>",
	Short: "Uploads a roster CSV to the course.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := gradescopeClient(cfg)

		start := timezone.Now()
		err := client.SendRoster(cmd.Context(), args[0], args[1], *gradescopeNotify, *gradescopeSendRole, clients.DefaultExportOptions())
		recordRun(cmd.Context(), cfg, exportlog.RecordParams{
			Platform:  gradescope.Platform,
			Operation: "send",
			Course:    args[0],
			Files:     []string{args[1]},
			StartedAt: start,
			Err:       err,
		})
		if err != nil {
			fatal("failed to upload the roster", err)
		}
	},
}
