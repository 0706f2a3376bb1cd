package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskplanner",
	Short: "Task planner with recurring task generation",
	Long: `taskplanner tracks tasks through a Telegram bot and materializes the
next occurrence of every recurring series on a daily schedule.

Settings come from an optional YAML file (--config) and environment
variables such as TELEGRAM_TOKEN, DATABASE_URL and SWEEP_TIME.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
