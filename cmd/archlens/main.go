// archlens discovers the architecture of a microservice project: it drives
// an LLM agent over the project sources, embeds per-file interpretations in
// a vector store, derives the data interactions between services, and
// optionally materializes the result as a neo4j dependency graph.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "archlens",
	Short: "Microservice architecture discovery",
	Long: `archlens analyzes an open-source microservice project and reconstructs
its architecture: the deployed service instances, their open interfaces,
and the data interactions between them.

All analysis settings live in a YAML configuration file; see the
'analyze' command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debugFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
