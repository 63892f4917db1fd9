package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-bunq"
)

func statusCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show accounts, recent payments and cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := app.refresh(cmd.Context())
			if err != nil {
				app.logger.Error("bunq status refresh failed", "error", err)
				return fmt.Errorf("refresh failed: %s", bunq.ErrorMessage(err))
			}
			renderStatus(app.out, status)
			return nil
		},
	}
}

func watchCmd(app *cliApp) *cobra.Command {
	var (
		interval time.Duration
		cycles   int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh and print the status on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = app.client.Config().UpdateInterval
			}
			return app.watch(cmd, interval, cycles)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default: update_interval from the config)")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "stop after this many refreshes, 0 runs until interrupted")
	return cmd
}

// watch refreshes immediately and then on every tick. A failed refresh marks
// the view degraded and keeps the last good snapshot on screen.
func (a *cliApp) watch(cmd *cobra.Command, interval time.Duration, cycles int) error {
	ctx := cmd.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		status, err := a.refresh(ctx)
		if err != nil {
			a.logger.Warn("bunq watch refresh failed", "cycle", n, "error", err)
			renderDegraded(a.out, err)
			renderStatus(a.out, a.client.Status())
		} else {
			renderStatus(a.out, status)
		}
		if cycles > 0 && n >= cycles {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
