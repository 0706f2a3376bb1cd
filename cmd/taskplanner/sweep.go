package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"task-planner/internal/bot"
	"task-planner/internal/service"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one recurrence sweep and exit",
	Long: `sweep generates the next instance of every recurring series that needs
one, then prints a summary. Running it again without task changes creates
nothing. Notifications go to Telegram when TELEGRAM_TOKEN is set and to the
log otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()

		var notifier service.Notifier = service.NewLogNotifier(c.logger)
		if c.cfg.TelegramToken != "" {
			api, err := bot.NewAPI(c.cfg.TelegramToken)
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}
			notifier = bot.NewNotifier(api, c.userRepo)
		}

		res := c.sweep(notifier).Run(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: processed=%d created=%d failed=%d\n",
			res.RunID, res.Processed, res.Created, res.Failed)
		return nil
	},
}
