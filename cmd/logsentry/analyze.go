package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"logsentry/internal/ingest"
	"logsentry/internal/pipeline"
	"logsentry/internal/schema"
	"logsentry/internal/tui"
	"logsentry/internal/tui/styles"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	output string
	input  string
	tui    bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a log file",
		Long: `Analyze parses the file, normalizes its entries and prints the anomalies found.
The input format is taken from the file suffix (.csv, .json, .log, .txt, optionally
followed by .gz or .zst) unless --as is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.output, "format", "text", "output format (text, json)")
	cmd.Flags().StringVar(&opts.input, "as", "", "input format (csv, json, text); overrides the file suffix")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "open the interactive report viewer")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
	}

	format, err := inputFormat(path, opts.input)
	if err != nil {
		return err
	}

	cfg, logger, err := root.loadConfig()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	report, err := pipeline.New(cfg.Policy(), logger).Process(path, format)
	if errors.Is(err, pipeline.ErrEmptyInput) {
		return errors.New("no valid log entries found")
	}
	if err != nil {
		return fmt.Errorf("error parsing file: %w", err)
	}

	switch {
	case opts.tui:
		return tui.Run(report, path)
	case opts.output == "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		printSummary(cmd.OutOrStdout(), path, info.Size(), report)
		return nil
	}
}

func inputFormat(path, override string) (ingest.Format, error) {
	if override != "" {
		return ingest.ParseFormat(override)
	}
	return ingest.FormatForFilename(path)
}

func printSummary(w io.Writer, path string, size int64, report *schema.Report) {
	flagged := report.CountByKind(schema.AnomalyRecord)
	patterns := report.CountByKind(schema.AnomalySequence)

	fmt.Fprintln(w, styles.Title.Render("logsentry report"))
	line := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", styles.Label.Render(label), value)
	}
	line("File", fmt.Sprintf("%s (%s)", filepath.Base(path), humanize.Bytes(uint64(size))))
	line("Format", report.Format)
	line("Rows", humanize.Comma(int64(len(report.Rows))))
	line("Columns", strings.Join(report.Columns, ", "))
	line("Anomalies", fmt.Sprintf("%d (%d flagged, %d failed login patterns)",
		len(report.Anomalies), flagged, patterns))
	fmt.Fprintln(w)

	if len(report.Anomalies) == 0 {
		fmt.Fprintln(w, styles.StatusOK.Render("No anomalies detected."))
		return
	}

	fmt.Fprintln(w, styles.Subtitle.Render("Anomalies"))
	for _, a := range report.Anomalies {
		marker := styles.StatusError.Render("●")
		if a.Kind == schema.AnomalyRecord {
			marker = styles.StatusWarning.Render("●")
		}
		fmt.Fprintf(w, "  %s %s\n", marker, a.Description)
	}
}
