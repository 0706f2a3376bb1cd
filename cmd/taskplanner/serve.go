package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"task-planner/internal/bot"
	"task-planner/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, the daily recurrence sweep and the digests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.cfg.RequireBot(); err != nil {
			return err
		}

		api, err := bot.NewAPI(c.cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		notifier := bot.NewNotifier(api, c.userRepo)

		sweep := c.sweep(notifier)
		taskSvc := service.NewTaskService(c.taskRepo, c.userRepo, sweep, notifier, c.logger)
		digestSvc := service.NewDigestService(c.taskRepo)
		userSvc := service.NewUserService(c.userRepo, c.logger)
		telegramBot := bot.New(api, c.userRepo, taskSvc, userSvc, digestSvc, &c.cfg, c.logger)

		scheduler := service.NewSchedulerService(time.Local, c.logger)
		// A sweep always runs to completion, so it is not tied to the signal context.
		if _, err := scheduler.ScheduleDaily("recurrence-sweep", c.cfg.SweepTime, func() {
			sweep.Run(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
		if interval := c.cfg.ReportInterval(); interval > 0 {
			if _, err := scheduler.ScheduleInterval("digest", interval, func() {
				jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					c.logger.Error("digest", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("schedule digests: %w", err)
			}
		}
		scheduler.Start()
		defer scheduler.Stop()

		c.logger.Info("task planner started", "sweep_time", c.cfg.SweepTime)
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot stopped with error: %w", err)
		}
		c.logger.Info("shutdown complete")
		return nil
	},
}
