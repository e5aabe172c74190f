package commands

import (
	"fmt"
	"log/slog"
	"os"

	"edubag/lib/aggregator"
	"edubag/lib/configutil"
	"edubag/lib/scrapers/brightspace"
	"edubag/lib/sources"
	"edubag/lib/tabular"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type SourceConfig struct {
	Name string `json:"name"`
	// one of "edstem", "officehours", "csv"
	Type string `json:"type"`
	Path string `json:"path"`
}

type AggregateConfig struct {
	// path of the gradebook CSV exported from brightspace
	Gradebook string `json:"gradebook"`
	Output    string `json:"output"`
	// keep per-source value columns in the output next to the computed ones
	KeepSourceColumns bool                    `json:"keep_source_columns"`
	Sources           []SourceConfig          `json:"sources"`
	Columns           []aggregator.ColumnSpec `json:"columns"`
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
}

func loadSource(cfg SourceConfig) (sources.Source, error) {
	switch cfg.Type {
	case "edstem":
		src, err := sources.LoadEdstem(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := src.ResolveIdentity(); err != nil {
			return nil, err
		}
		return src, nil
	case "officehours":
		oh, err := sources.LoadOfficeHours(cfg.Path)
		if err != nil {
			return nil, err
		}
		visits, err := oh.CountVisits()
		if err != nil {
			return nil, err
		}
		return sources.FromTable(visits, "officehours"), nil
	case "csv":
		data, err := tabular.ReadCSVFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		src := sources.FromTable(data, "csv")
		if err := src.ResolveIdentity(); err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

func printReport(report aggregator.Report) {
	for _, w := range report.Warnings {
		slog.Warn(w)
	}
	for _, missing := range report.MissingStudents {
		slog.Warn("no source data for student", "username", missing)
	}
	for _, link := range report.FuzzyMatches {
		slog.Warn("fuzzy username match", "source", link.Left, "gradebook", link.Right, "correlation", link.Correlation)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Column", "Count", "Mean", "Min", "Max", "Zeros"})
	for name, stats := range report.ColumnStats {
		t.AppendRow(table.Row{name, stats.Count, fmt.Sprintf("%.2f", stats.Mean), stats.Min, stats.Max, stats.Zeros})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <aggregate.json5>",
	Short: "Merges engagement sources into a gradebook and computes point columns.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[AggregateConfig](args[0])
		if err != nil {
			fatal("failed to read the aggregation config", err)
		}
		if cfg.Output == "" {
			fatal("invalid aggregation config", fmt.Errorf("an output path was not specified"))
		}

		base, err := brightspace.ParseGradebookFile(cfg.Gradebook)
		if err != nil {
			fatal("failed to read the base gradebook", err)
		}

		agg := aggregator.New(base, cfg.Columns)
		for _, srcCfg := range cfg.Sources {
			src, err := loadSource(srcCfg)
			if err != nil {
				fatal(fmt.Sprintf("failed to load source %q", srcCfg.Name), err)
			}
			err = agg.AddSource(srcCfg.Name, src)
			if err != nil {
				fatal(fmt.Sprintf("failed to add source %q", srcCfg.Name), err)
			}
		}

		_, err = agg.MergeSources()
		if err != nil {
			fatal("failed to merge sources", err)
		}
		_, err = agg.ComputeColumns()
		if err != nil {
			fatal("failed to compute columns", err)
		}

		report, err := agg.Validate()
		if err != nil {
			fatal("failed to validate the aggregation", err)
		}
		printReport(report)

		out, err := agg.ToGradebook(cfg.KeepSourceColumns)
		if err != nil {
			fatal("failed to build the output gradebook", err)
		}
		f, err := os.Create(cfg.Output)
		if err != nil {
			fatal("failed to create the output file", err)
		}
		defer f.Close()
		err = out.WriteCSV(f)
		if err != nil {
			fatal("failed to write the output gradebook", err)
		}

		slog.Info("wrote aggregated gradebook", "path", cfg.Output)
	},
}
