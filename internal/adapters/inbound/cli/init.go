package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/config"
	"github.com/noxaudit/noxaudit/internal/domain"
)

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func newInitCmd() *cobra.Command {
	var (
		provider string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Generate a noxaudit.yml configuration file",
		Long:  "Create a noxaudit.yml auditing the repository at path with the default weekly schedule.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			dest := filepath.Join(absPath, config.DefaultPath)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", config.DefaultPath)
				}
			}

			switch provider {
			case "anthropic", "gemini":
			default:
				return fmt.Errorf("unknown provider %q (valid: anthropic, gemini)", provider)
			}

			content := generateConfig(filepath.Base(absPath), provider)

			if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.DefaultPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "anthropic", "Provider (anthropic, gemini)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing noxaudit.yml")

	return cmd
}

func generateConfig(repoName, provider string) string {
	cfg := domain.DefaultConfig()

	var b strings.Builder
	b.WriteString("# noxaudit configuration\n\n")
	fmt.Fprintf(&b, "repos:\n  - name: %q\n    path: .\n    # exclude:\n    #   - migrations\n\n", repoName)

	b.WriteString("# Focus per weekday. Combine areas with + (security+testing); \"off\" skips the day.\n")
	b.WriteString("schedule:\n")
	for _, day := range weekdays {
		fmt.Fprintf(&b, "  %s: %q\n", day, cfg.Schedule[day])
	}

	fmt.Fprintf(&b, "\nprovider: %s\n# model: unset uses the provider default\n\n", provider)
	fmt.Fprintf(&b, "decisions:\n  path: %s\n  # Decisions older than this stop suppressing findings. 0 keeps them forever.\n  expiry_days: %d\n\n",
		cfg.Decisions.Path, cfg.Decisions.ExpiryDays)
	fmt.Fprintf(&b, "reports_dir: %s\nruns_dir: %s\nledger_path: %s\ncost_ledger: %s\n\n",
		cfg.ReportsDir, cfg.RunsDir, cfg.LedgerPath, cfg.CostLedgerPath)
	fmt.Fprintf(&b, "batch:\n  poll_interval: %s\n  max_poll_interval: %s\n  timeout: %s\n\n",
		cfg.Batch.PollInterval, cfg.Batch.MaxPollInterval, cfg.Batch.Timeout)
	fmt.Fprintf(&b, "prepass:\n  enabled: false\n  min_files: %d\n\n", cfg.Prepass.MinFiles)

	b.WriteString(`# notifications:
#   - channel: telegram
#     target: "123456789"   # chat id; token from TELEGRAM_BOT_TOKEN

logging:
  level: info
  format: console
`)
	return b.String()
}
