// Package pipeline runs parsing, normalization and detection over one file.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"logsentry/internal/correlation"
	"logsentry/internal/ingest"
	"logsentry/internal/logging"
	"logsentry/internal/normalize"
	"logsentry/internal/schema"
)

// ErrEmptyInput indicates a file that parsed but produced no rows.
var ErrEmptyInput = errors.New("no valid log entries found")

// Pipeline analyzes log files with a fixed detection policy. It keeps no
// state between calls and is safe for concurrent use.
type Pipeline struct {
	parser     *ingest.Parser
	normalizer *normalize.Normalizer
	severity   *correlation.SeverityFilter
	sequence   *correlation.SequenceDetector
	logger     *slog.Logger
}

// New creates a pipeline for policy. A nil logger uses slog.Default.
func New(policy *correlation.Policy, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")
	return &Pipeline{
		parser:     ingest.NewParser(),
		normalizer: normalize.NewNormalizer(logger),
		severity:   correlation.NewSeverityFilter(policy),
		sequence:   correlation.NewSequenceDetector(),
		logger:     logger,
	}
}

// Process parses the file at path as format and returns the normalized table
// with its anomalies. Errors are ingest.ErrUnsupportedExtension, an
// *ingest.ParseError, a wrapped read error, or ErrEmptyInput; no partial
// report is returned.
func (p *Pipeline) Process(path string, format ingest.Format) (*schema.Report, error) {
	parsed, err := p.parser.ParseFile(path, format)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("parsed file",
		"format", format,
		"lines", parsed.Stats.Lines,
		"records", parsed.Stats.Records,
		"dropped", parsed.Stats.Dropped,
	)
	if len(parsed.Records) == 0 {
		return nil, ErrEmptyInput
	}

	normalized := p.normalizer.Normalize(parsed.Table())
	table := normalized.Table

	flagged := p.severity.FilterAnomalies(table)
	runs := p.sequence.DetectRuns(table)

	anomalies := make([]schema.Anomaly, 0, len(flagged)+len(runs))
	anomalies = append(anomalies, flagged...)
	anomalies = append(anomalies, runs...)

	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		for _, a := range flagged {
			p.logger.Debug("flagged record", "rule_id", a.RuleID, logging.RecordAttrs("record", *a.Record))
		}
	}
	p.logger.Debug("detection complete",
		"rows", table.Len(),
		"flagged", len(flagged),
		"runs", len(runs),
	)

	return schema.NewReport(parsed.Label, table, anomalies), nil
}
