package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var configPath *string

var rootCmd = &cobra.Command{
	Use:   "edubag",
	Short: "edubag exports rosters, gradebooks and attendance from campus LMS platforms.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "edubag.json5", "The config file to read.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func printFiles(paths []string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File"})
	for _, p := range paths {
		t.AppendRow(table.Row{p})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
