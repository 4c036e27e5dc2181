package main

import (
	"github.com/spf13/cobra"
)

var (
	configFile     string
	trajectoryFile string
	providerName   string
	modelName      string
	maxSteps       int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "LLM agent with trajectory recording",
	Long: `Agent runs tasks with an LLM and a tool set, recording every model
interaction and state transition to a durable trajectory file as it goes.

Available commands:
  run          - Execute a single task
  interactive  - Read tasks from stdin, one trajectory per task`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "config file (default config.yaml)")
	rootCmd.PersistentFlags().StringVar(&trajectoryFile, "trajectory-file", "", "trajectory output path (default auto-timestamped)")
	rootCmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "", "model provider (default from config)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "model name (default from provider config)")
	rootCmd.PersistentFlags().IntVar(&maxSteps, "max-steps", 0, "step budget override (0 uses config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(interactiveCmd)
}
