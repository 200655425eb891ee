package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/gazou/internal/config"
)

// NewRootCmd creates the root gazou command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gazou",
		Short:         "Gazou: semantic image and document search",
		Long:          "Gazou embeds images and documents with CLIP and searches them by natural-language text.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", config.DefaultPath, "config file path")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		newIndexCmd(),
		newSearchCmd(),
		newServerCmd(),
		newStatusCmd(),
		newRunsCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the config named by --config. When --config is left at the default,
// config.yaml in the current directory takes precedence so a project checkout uses its own
// settings. A missing file yields the defaults. It returns the config and the path it
// came from.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if !cmd.Flags().Changed("config") {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	return cfg, path, nil
}
