package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/gazou/internal/cli"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/storage"
	"github.com/hyperjump/gazou/internal/vector"
)

// statusResponse is what status prints in json format.
type statusResponse struct {
	IndexDir       string             `json:"index_dir"`
	Indexed        bool               `json:"indexed"`
	Stats          *models.IndexStats `json:"stats,omitempty"`
	DiskUsageBytes int64              `json:"disk_usage_bytes"`
	Runs           int64              `json:"runs"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and disk usage",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().String("index-dir", "", "index directory (default: storage.index_dir)")
	cmd.Flags().String("format", "text", "output format: text or json")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	cfg, catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer catalog.Close()

	status := statusResponse{IndexDir: mustString(cmd, "index-dir")}
	if status.IndexDir == "" {
		status.IndexDir = cfg.Storage.IndexDir
	}

	store, err := vector.Load(status.IndexDir)
	switch {
	case err == nil:
		s := store.Stats()
		status.Indexed = true
		status.Stats = &models.IndexStats{
			TotalVectors:     s.TotalVectors,
			EmbeddingDim:     s.EmbeddingDim,
			TotalIdentifiers: len(store.Identifiers()),
		}
	case !errors.Is(err, vector.ErrNotFound):
		return fmt.Errorf("load index: %w", err)
	}

	if status.DiskUsageBytes, err = storage.DiskUsageBytes(status.IndexDir, cfg.Storage.CatalogPath); err != nil {
		return fmt.Errorf("disk usage: %w", err)
	}
	if status.Runs, err = catalog.CountRuns(cmd.Context()); err != nil {
		return fmt.Errorf("count runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.OutputJSON {
		return cli.WriteJSON(out, status)
	}
	_, _ = fmt.Fprintf(out, "Index:       %s\n", status.IndexDir)
	if status.Stats == nil {
		_, _ = fmt.Fprintln(out, "No index saved yet. Run gazou index --source-dir <dir>.")
	} else if err := cli.WriteStats(out, *status.Stats, format); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Disk usage:  %s\n", formatBytes(status.DiskUsageBytes))
	_, _ = fmt.Fprintf(out, "Runs:        %d\n", status.Runs)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
