package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/costledger"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/tui"
	"github.com/noxaudit/noxaudit/internal/domain"
)

func newCostsCmd(g *globalFlags) *cobra.Command {
	var (
		jsonOutput bool
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Summarise token usage and estimated spend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				rows    []domain.CostSummary
				entries []domain.CostEntry
			)
			if _, err := os.Stat(a.cfg.CostLedgerPath); err == nil {
				store, err := costledger.Open(a.cfg.CostLedgerPath, a.log)
				if err != nil {
					return err
				}
				defer store.Close()
				if rows, err = store.Summary(cmd.Context()); err != nil {
					return err
				}
				if recent > 0 {
					if entries, err = store.Recent(cmd.Context(), recent); err != nil {
						return err
					}
				}
			}

			if jsonOutput {
				data, err := json.MarshalIndent(map[string]any{
					"pricing_as_of": domain.PricingAsOf(),
					"summary":       rows,
					"recent":        entries,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling costs: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderCosts(rows))
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderCostEntries(entries))
			fmt.Fprintf(cmd.OutOrStdout(), "\n  estimates use list prices as of %s\n", domain.PricingAsOf())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&recent, "recent", 0, "Also list the latest N audits")
	return cmd
}
