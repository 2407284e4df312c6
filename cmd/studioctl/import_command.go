package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/importer"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		gateway string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Grant credits from a payment gateway sales export",
		Long: "Grant credits from a payment gateway sales export.\n\n" +
			"Nothing is written when a payment reference was already granted; the\n" +
			"conflicts are listed instead. Re-run with --confirm to grant only the new rows.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer f.Close()

			svc, closeServices, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeServices()

			params, err := svc.Import.Import(importer.Gateway(gateway), f)
			if err != nil {
				return err
			}

			result, err := svc.Credits.ImportGrants(cmd.Context(), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if len(result.Conflicts) == 0 {
				fmt.Fprintf(out, "Granted %d purchase(s)\n", len(result.Granted))
				fmt.Fprintln(out, renderBatches(result.Granted))

				return nil
			}

			rows := make([][]string, 0, len(result.Conflicts))
			for _, c := range result.Conflicts {
				rows = append(rows, []string{
					c.Incoming.Reference,
					c.Incoming.AccountID.String(),
					c.Existing.ID.String(),
					c.Existing.AddedAt.Format("2006-01-02"),
				})
			}

			fmt.Fprintf(out, "%d reference(s) already granted\n", len(result.Conflicts))
			fmt.Fprintln(out, renderTable(
				[]string{"Reference", "Account", "Existing batch", "Granted on"},
				rows,
				nil,
			))

			if !confirm {
				return fmt.Errorf("import aborted: %d new purchase(s) not granted, re-run with --confirm to grant them", len(result.New))
			}

			granted, err := svc.Credits.CreateGrants(cmd.Context(), result.New)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Granted %d new purchase(s)\n", len(granted))
			fmt.Fprintln(out, renderBatches(granted))

			return nil
		},
	}

	cmd.Flags().StringVar(&gateway, "gateway", string(importer.GatewayCheckout), "Gateway that produced the export")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Grant the new rows when some references were already granted")

	return cmd
}

func renderBatches(batches []*credit.Batch) string {
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, []string{
			b.Reference,
			b.AccountID.String(),
			strconv.FormatInt(b.RecordingAdded, 10),
			strconv.FormatInt(b.AIAdded, 10),
			formatCents(b.AmountPaidCents),
		})
	}

	return renderTable(
		[]string{"Reference", "Account", "Recording", "AI", "Paid"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}
