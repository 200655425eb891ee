// Package cli formats Gazou results, index stats and run history for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one line per entry.
	OutputCompact OutputFormat = "compact"
)

const maxIdentifierWidth = 80

// ParseOutputFormat returns the format named by s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputJSON, OutputCompact:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", r.Rank, r.Score, r.Identifier)
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
		for _, r := range response.Results {
			fmt.Fprintf(w, "%3d. %.4f  %s\n", r.Rank, r.Score, utils.TruncateLeft(r.Identifier, maxIdentifierWidth))
		}
		if response.Total > 0 {
			fmt.Fprintln(w)
		}
		return nil
	}
}

// WriteStats writes index statistics.
func WriteStats(w io.Writer, stats models.IndexStats, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, stats)
	}
	fmt.Fprintf(w, "Vectors:     %d\n", stats.TotalVectors)
	fmt.Fprintf(w, "Dimension:   %d\n", stats.EmbeddingDim)
	fmt.Fprintf(w, "Identifiers: %d\n", stats.TotalIdentifiers)
	return nil
}

// WriteReport writes the summary of an indexing run, listing each failed item.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %d of %d items in %s (run %s)\n",
		report.Indexed, report.Total, report.Duration.Round(time.Millisecond), report.RunID)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  failed: %s: %s\n", utils.TruncateLeft(f.Identifier, maxIdentifierWidth), utils.Truncate(f.Reason, 120))
	}
	return nil
}

// WriteRuns writes a list of recorded runs, newest first.
func WriteRuns(w io.Writer, runs []*models.IndexRun, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, runs)
	case OutputCompact:
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Indexed, r.Total, r.Source)
		}
		return nil
	default:
		if len(runs) == 0 {
			fmt.Fprintln(w, "No indexing runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  indexed %d/%d  failed %d  %s\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Indexed, r.Total, r.Failed, utils.TruncateLeft(r.Source, 60))
		}
		return nil
	}
}

// WriteRun writes one run with its failures.
func WriteRun(w io.Writer, run *models.IndexRun, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, run)
	}
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Source:   %s\n", run.Source)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Indexed:  %d of %d (%d failed)\n", run.Indexed, run.Total, run.Failed)
	for _, f := range run.Failures {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Identifier, f.Reason)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
