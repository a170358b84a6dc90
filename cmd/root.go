// Package cmd contains the model-rag CLI commands.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/coderTtxi12/model-rag/internal/log"
)

var (
	debugFlag   bool
	jsonLogFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "model-rag",
	Short: "Corrective RAG question-answering service",
	Long: `model-rag ingests CSV knowledge bases into a vector store and answers
questions over them with a self-correcting retrieval workflow: retrieved
passages are relevance-graded before generation, and generated answers are
checked for groundedness and usefulness, retrying generation when either
check fails.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if debugFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(log.New(log.Config{Level: level, JSON: jsonLogFlag}))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", os.Getenv("DEBUG") != "", "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogFlag, "log-json", false, "log in JSON format")
}
