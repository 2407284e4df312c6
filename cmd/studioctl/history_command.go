package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <account-id>",
		Short: "Show an account's balance and credit batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id: %w", err)
			}

			svc, closeServices, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeServices()

			bal, err := svc.Credits.Balance(cmd.Context(), accountID)
			if err != nil {
				return err
			}

			entries, err := svc.Credits.History(cmd.Context(), accountID)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				expires := "never"
				if e.Batch.ExpiresAt != nil {
					expires = e.Batch.ExpiresAt.Format("2006-01-02")
				}

				state := string(e.Batch.Status)
				if e.Expired {
					state = "expired"
				}

				rows = append(rows, []string{
					e.Batch.AddedAt.Format("2006-01-02"),
					string(e.Batch.Source),
					state,
					fmt.Sprintf("%d/%d", e.RecordingRemaining, e.Batch.RecordingAdded),
					fmt.Sprintf("%d/%d", e.AIRemaining, e.Batch.AIAdded),
					expires,
					e.Batch.Reference,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance: %d recording, %d AI\n", bal.Recording, bal.AI)
			fmt.Fprintln(out, renderTable(
				[]string{"Added", "Source", "State", "Recording", "AI", "Expires", "Reference"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))

			return nil
		},
	}
}
