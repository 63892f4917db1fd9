package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-bunq"
	bunqcommand "github.com/goliatone/go-bunq/command"
)

func transferCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from-account> <to-account> <amount> [description]",
		Short: "Move money between two of your own accounts",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(strings.TrimSpace(args[2]))
			if err != nil {
				return fmt.Errorf("amount %q is not a number", args[2])
			}
			msg := bunqcommand.TransferMessage{
				FromAccountID: args[0],
				ToAccountID:   args[1],
				Amount:        amount,
			}
			if len(args) == 4 {
				msg.Description = args[3]
			}
			if err := msg.Validate(); err != nil {
				return fmt.Errorf("transfer rejected: %s", bunq.ErrorMessage(err))
			}

			// recipient currency and IBAN come from the snapshot
			if _, err := app.refresh(cmd.Context()); err != nil {
				return fmt.Errorf("refresh failed: %s", bunq.ErrorMessage(err))
			}
			if err := app.facade.Commands().Transfer.Execute(cmd.Context(), msg); err != nil {
				app.logger.Error("bunq transfer failed", "from", msg.FromAccountID, "to", msg.ToAccountID, "error", err)
				return fmt.Errorf("transfer failed: %s", bunq.ErrorMessage(err))
			}
			fmt.Fprintf(app.out, "transferred %s from %s to %s\n", amount.StringFixed(2), msg.FromAccountID, msg.ToAccountID)
			return nil
		},
	}
}

func linkCardCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "link-card <card> <account>",
		Short: "Make an account the primary account of a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := bunqcommand.LinkCardMessage{CardID: args[0], AccountID: args[1]}
			if err := msg.Validate(); err != nil {
				return fmt.Errorf("link rejected: %s", bunq.ErrorMessage(err))
			}
			if _, err := app.refresh(cmd.Context()); err != nil {
				return fmt.Errorf("refresh failed: %s", bunq.ErrorMessage(err))
			}
			if err := app.facade.Commands().LinkCard.Execute(cmd.Context(), msg); err != nil {
				app.logger.Error("bunq card link failed", "card", msg.CardID, "account", msg.AccountID, "error", err)
				return fmt.Errorf("link failed: %s", bunq.ErrorMessage(err))
			}
			fmt.Fprintf(app.out, "card %s now pays from account %s\n", msg.CardID, msg.AccountID)
			return nil
		},
	}
}
