package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the admin dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeServices, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeServices()

			// The CLI runs with database access, so it acts as an admin.
			snap, err := svc.Stats.Snapshot(cmd.Context(), account.Actor{Role: account.RoleAdmin})
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Active clients", strconv.Itoa(snap.ActiveClients)},
				{"Outstanding recording credits", strconv.FormatInt(snap.Outstanding.Recording, 10)},
				{"Outstanding AI credits", strconv.FormatInt(snap.Outstanding.AI, 10)},
				{"Pending orders", strconv.Itoa(snap.PendingOrders)},
				{"Pending revisions", strconv.Itoa(snap.PendingRevisions)},
			}

			for _, st := range order.Statuses {
				rows = append(rows, []string{"Orders " + string(st), strconv.Itoa(snap.OrdersByStatus[st])})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Figure", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

			return nil
		},
	}
}
