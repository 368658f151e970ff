package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/config"
)

var (
	version = "dev"
	commit  = "none"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "noxaudit",
		Short: "Scheduled AI code audits for your repositories",
		Long: "noxaudit gathers source files per focus area, submits them to a language-model " +
			"batch API, filters findings against your decisions and reports what is new.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "Path to noxaudit.yml")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format (console, json)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newSubmitCmd(g))
	cmd.AddCommand(newRetrieveCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newScorecardCmd(g))
	cmd.AddCommand(newDecideCmd(g))
	cmd.AddCommand(newDecisionsCmd(g))
	cmd.AddCommand(newFocusCmd())
	cmd.AddCommand(newCostsCmd(g))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newMCPCmd(g))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the CLI until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
	}
	return err
}
