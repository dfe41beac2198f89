package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/wingmate/bot"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot (long polling)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or WINGMATE_TELEGRAM_BOT_TOKEN)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, logger, err := buildService(ctx)
			if err != nil {
				return err
			}

			runner := bot.NewRunner(svc, bot.NewRouter(svc, logger), logger, bot.RunnerOptions{
				Token:         token,
				PollTimeout:   flagOrViperInt(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				SweepInterval: flagOrViperDuration(cmd, "sweep-interval", "sweep.interval"),
			})

			logger.Info("telegram bot starting")
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("telegram bot stopped")
			return nil
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().Int("telegram-poll-timeout", 50, "Long-poll timeout in seconds.")
	cmd.Flags().Duration("sweep-interval", 0, "Autoghost sweep interval (0 uses the default).")
	return cmd
}
