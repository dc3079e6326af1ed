package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "grader",
	Short: "Score transcripts against a rubric with an LLM",
	Long:  "grader extracts a structured rubric from rubric text and scores\nconversation transcripts against it, one criterion at a time.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		_ = godotenv.Load(rootFlags.envFile)
	},
}

var rootFlags struct {
	envFile string
	verbose bool
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
