package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/tui"
	"github.com/noxaudit/noxaudit/internal/application"
)

func addAuditFlags(cmd *cobra.Command, opts *application.AuditOptions) {
	cmd.Flags().StringVarP(&opts.Repo, "repo", "r", "", "Audit only this repo (default: all configured)")
	cmd.Flags().StringVarP(&opts.Focus, "focus", "f", "", "Focus expression, e.g. security or security+testing (default: today's schedule)")
	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", "", "Provider override (anthropic, gemini)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model override")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Gather files without calling a provider")
	cmd.Flags().StringVar(&opts.LedgerPath, "ledger", "", "Pending-batch ledger path (default from config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite a pending ledger from an earlier submission")
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var opts application.AuditOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit audits and wait for the results",
		Long: "Submit one batch per repo and poll until every batch ended or --timeout passed. " +
			"Batches still running at the deadline stay pending for `noxaudit retrieve`.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.auditService(true).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		},
	}
	addAuditFlags(cmd, &opts)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Stop polling after this long (default from config)")
	return cmd
}

func newSubmitCmd(g *globalFlags) *cobra.Command {
	var opts application.AuditOptions

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit audits and return immediately",
		Long:  "Submit one batch per repo and record them in the pending ledger. Collect results later with `noxaudit retrieve`.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.auditService(false).Submit(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		},
	}
	addAuditFlags(cmd, &opts)
	return cmd
}

func newRetrieveCmd(g *globalFlags) *cobra.Command {
	var (
		ledgerPath string
		drop       []string
	)

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Collect results of pending batches",
		Long: "Poll every pending batch once and process the ones that ended. " +
			"--drop removes batches from the ledger without processing them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(drop) > 0 {
				dropped, err := a.auditService(false).Drop(ledgerPath, drop)
				if err != nil {
					return err
				}
				for _, b := range dropped {
					fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s (%s, %s)\n", b.BatchID, b.Repo, b.Provider)
				}
				return nil
			}

			report, err := a.auditService(true).Retrieve(cmd.Context(), ledgerPath)
			if err != nil {
				return err
			}
			if len(report.Results) == 0 && len(report.Failures) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending batches.")
				return nil
			}
			return printReport(cmd, report)
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Pending-batch ledger path (default from config)")
	cmd.Flags().StringSliceVar(&drop, "drop", nil, "Remove these batch ids from the ledger without processing them")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var (
		ledgerPath string
		check      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			set, statuses, err := a.auditService(false).Status(cmd.Context(), ledgerPath, check)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(map[string]any{"pending": set, "statuses": statuses}, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling status: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if set.IsEmpty() {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending batches.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderPending(set, statuses))
			return nil
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Pending-batch ledger path (default from config)")
	cmd.Flags().BoolVar(&check, "check", false, "Poll each provider for the current batch state")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// printReport renders results and reports unit failures. Any failure makes
// the command exit non-zero after every unit was reported.
func printReport(cmd *cobra.Command, r application.RunReport) error {
	out := cmd.OutOrStdout()
	if r.Off {
		fmt.Fprintln(out, "Today is scheduled as off. Use --focus to override.")
		return nil
	}
	if len(r.Results) > 0 {
		fmt.Fprint(out, tui.RenderResults(r.Results))
	}
	if r.Pending != nil {
		fmt.Fprintf(out, "\n%d batch(es) pending (submission %s). Run `noxaudit retrieve` to collect them.\n",
			len(r.Pending.Batches), r.Pending.SubmissionID)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", f)
	}
	if len(r.Failures) > 0 {
		return fmt.Errorf("%d repo(s) failed", len(r.Failures))
	}
	return nil
}
