package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/cli"
	"github.com/hyperjump/gazou/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a directory of images and documents",
		Long: `Embed every supported file under --source-dir and save the index to --output-dir.
Files that fail to embed are reported and skipped. With --append the files are added to the
index already saved in --output-dir instead of replacing it.`,
		Args: cobra.NoArgs,
		RunE: runIndex,
	}

	cmd.Flags().String("source-dir", "", "directory to index (required)")
	cmd.Flags().String("output-dir", "", "index directory (default: storage.index_dir)")
	cmd.Flags().Int("batch-size", 0, "items per embedding batch (default: indexing.batch_size)")
	cmd.Flags().Bool("append", false, "add to the existing index instead of replacing it")
	cmd.Flags().String("format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("source-dir")

	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	outputDir := mustString(cmd, "output-dir")
	if outputDir == "" {
		outputDir = a.cfg.Storage.IndexDir
	}
	sourceDir := mustString(cmd, "source-dir")
	items, err := indexer.CollectItems(sourceDir, a.cfg.Indexing.ImageExtensions, a.cfg.Indexing.TextExtensions)
	if err != nil {
		return err
	}
	a.logger.Info("collected items", zap.String("source", sourceDir), zap.Int("items", len(items)))

	ctx := cmd.Context()
	var report *indexer.Report
	if appendMode, _ := cmd.Flags().GetBool("append"); appendMode {
		if err := a.loadOrEmpty(outputDir); err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		report, err = a.engine.Append(ctx, items)
	} else {
		report, err = a.engine.Index(ctx, items)
	}
	if err != nil {
		return fmt.Errorf("index %s: %w", sourceDir, err)
	}
	if err := a.engine.SaveIndex(outputDir); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := cli.WriteReport(out, report, format); err != nil {
		return err
	}
	if format == cli.OutputText {
		_, _ = fmt.Fprintf(out, "Index saved to %s\n", outputDir)
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
