package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/mongomap/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	env        string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "mongomap",
		Short: "MongoDB mapping admin server and tooling",
		Long: `mongomap serves the admin API over a MongoDB deployment mapped with the mongomap
library and manages its collections, indexes and Atlas search indexes from the command line.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.env, "env", config.GetEnv(),
		"environment name, selects config/<env>.yaml and the log format")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "",
		"path to a config file, overrides --env lookup")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newCollectionsCmd(flags))
	rootCmd.AddCommand(newIndexesCmd(flags))
	rootCmd.AddCommand(newSearchIndexesCmd(flags))

	return rootCmd
}

func (f *globalFlags) load() (config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath)
	}
	return config.Load(f.env)
}
