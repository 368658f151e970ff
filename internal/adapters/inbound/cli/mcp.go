package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/noxaudit/noxaudit/internal/adapters/inbound/mcp"
)

func newMCPCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the noxaudit MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(g))
	return cmd
}

func newMCPServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the noxaudit MCP server (stdio)",
		Long: "Start the noxaudit MCP server using stdio transport. AI coding assistants can check pending " +
			"batches, collect results, read the scorecard and record decisions on findings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			s := mcpadapter.NewNoxauditMCPServer(mcpadapter.Services{
				Audit:      a.auditService(true),
				Scorecard:  a.scorecardService(),
				Decisions:  a.decisionService(),
				RunsDir:    a.cfg.RunsDir,
				LedgerPath: a.cfg.LedgerPath,
			}, version)
			a.log.Info().Str("version", version).Msg("mcp server listening on stdio")
			return server.ServeStdio(s)
		},
	}
}
