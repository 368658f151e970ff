package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/application"
)

func newDecideCmd(g *globalFlags) *cobra.Command {
	in := application.DecisionInput{}

	cmd := &cobra.Command{
		Use:   "decide <finding-id>",
		Short: "Record a decision on a finding",
		Long: "Append a decision to the ledger. Future audits drop findings covered by an unexpired decision " +
			"and the provider is told about it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			in.FindingID = args[0]
			if in.By == "" {
				in.By = os.Getenv("USER")
			}
			d, err := a.decisionService().Decide(in)
			if err != nil {
				return err
			}
			scope := "any file"
			if d.File != "" {
				scope = d.File
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s (%s)\n", d.Type, d.FindingID, scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.File, "file", "", "File the finding was reported in (empty matches any file)")
	cmd.Flags().StringVarP(&in.Type, "type", "t", "accept", "Decision type (accept, ignore, expire)")
	cmd.Flags().StringVar(&in.Reason, "reason", "", "Why the finding does not need action")
	cmd.Flags().StringVar(&in.By, "by", "", "Who decided (default: $USER)")
	return cmd
}

func newDecisionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "decisions",
		Short: "Print every recorded decision as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.decisionService().List()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(all, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling decisions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
