// Command memcore is the CLI for the memcore knowledge-memory core. It
// exposes spec.md §4.9's operations (record, encode, link, retrieve,
// reflect, compress, decay, materialize-context, list-blocks,
// reindex-all, reset-vectors) as cobra subcommands against a core wired
// from a YAML config file plus MEMCORE_ environment overrides.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "memcore",
	Short:   "CLI for the memcore knowledge-memory core",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to memcore config.yaml (default ~/.config/memcore/config.yaml)")
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(listBlocksCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(resetVectorsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}
