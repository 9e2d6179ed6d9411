package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "news-etl",
		Short:         "NewsAPI → Parquet → PostgreSQL batch job",
		Long:          "news-etl fetches articles from NewsAPI for a scheduled interval, stages them as a Parquet file in S3 and loads them into the warehouse with summary tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")

	root.AddCommand(
		newRunCmd(&configPath),
		newServeCmd(&configPath),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "news-etl %s (commit: %s)\n", version, commit)
		},
	}
}
