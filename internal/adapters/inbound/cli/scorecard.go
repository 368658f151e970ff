package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/scorecard"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/tui"
)

const formatTerminal = "terminal"

func newScorecardCmd(g *globalFlags) *cobra.Command {
	var (
		resultsDir string
		output     string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "scorecard",
		Short: "Compare providers and models across recorded runs",
		Long: "Aggregate run records into per-(provider, model, repo, focus) metrics: average findings, " +
			"high-severity rate, run-to-run consistency, cost and cross-model unique findings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if resultsDir == "" {
				resultsDir = a.cfg.RunsDir
			}
			svc := a.scorecardService()

			if format == formatTerminal {
				sc, err := svc.Build(resultsDir)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderScorecard(sc))
				return nil
			}

			writer, err := scorecard.ForFormat(format)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return fmt.Errorf("creating output directory: %w", err)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			sc, err := svc.Export(resultsDir, out, writer)
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Scorecard written to %s (%d runs, %d groups)\n", output, sc.RunCount, len(sc.Groups))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Directory of run records (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format (markdown, json, parquet, terminal)")
	return cmd
}
