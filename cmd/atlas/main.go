// Package main is the entry point for the criteria atlas server and tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is injected at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "atlas",
		Short:         "Clinical trial criteria scatter-plot server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config/atlas.yaml", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level from the configuration")

	cmd.AddCommand(
		newServeCommand(opts),
		newImportCommand(opts),
		newRenderCommand(opts),
		newViewCommand(opts),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
