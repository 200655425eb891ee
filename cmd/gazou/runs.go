package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/gazou/internal/cli"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded indexing runs, or show one run with its failures",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}

	cmd.Flags().IntP("limit", "n", 20, "number of runs to list")
	cmd.Flags().String("format", "text", "output format: text, compact, or json")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	_, catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer catalog.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := catalog.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cli.WriteRun(out, run, format)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := catalog.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return cli.WriteRuns(out, runs, format)
}
