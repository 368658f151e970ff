package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/config"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/costledger"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/decisions"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/gitinfo"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/history"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/ledger"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/notify"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/providers"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/reports"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/scanner"
	"github.com/noxaudit/noxaudit/internal/application"
	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/logging"
)

// app holds what one command invocation shares: configuration, logger and
// the resources to release on exit.
type app struct {
	cfg     domain.Config
	log     zerolog.Logger
	closers []io.Closer
}

func newApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	loadEnv(g.configPath)

	cfg, err := config.New().Load(g.configPath)
	if err != nil {
		return nil, err
	}

	lc := cfg.Logging
	if g.logLevel != "" {
		lc.Level = g.logLevel
	}
	if g.logFormat != "" {
		lc.Format = g.logFormat
	}
	log, closer := logging.New(logging.Config{
		Format:     lc.Format,
		Level:      lc.Level,
		FilePath:   lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
	}, cmd.ErrOrStderr())

	return &app{cfg: cfg, log: log, closers: []io.Closer{closer}}, nil
}

// loadEnv reads a .env next to the config file and one in the working
// directory. Variables already set in the environment win.
func loadEnv(configPath string) {
	seen := map[string]bool{}
	for _, p := range []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"} {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err == nil {
			_ = godotenv.Load(abs)
		}
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *app) registry() *providers.Registry {
	return providers.NewRegistry(providers.Options{Log: a.log})
}

// auditService wires the orchestrator. recordCosts opens the SQLite cost
// ledger; read-only commands leave it closed.
func (a *app) auditService(recordCosts bool) *application.AuditService {
	reg := a.registry()
	deps := application.AuditDeps{
		Gatherer:  scanner.New(),
		Providers: reg,
		Decisions: decisions.New(a.log),
		Ledger:    ledger.New(),
		Reports:   reports.New(),
		Notifier:  notify.NewTelegram(a.log),
		Runs:      history.New(),
		Git:       gitinfo.New(),
		Log:       a.log,
	}
	if recordCosts && a.cfg.CostLedgerPath != "" {
		store, err := costledger.Open(a.cfg.CostLedgerPath, a.log)
		if err != nil {
			a.log.Warn().Err(err).Str("path", a.cfg.CostLedgerPath).Msg("cost ledger unavailable, costs not recorded")
		} else {
			deps.Costs = store
			a.closers = append(a.closers, store)
		}
	}
	if a.cfg.Prepass.Enabled {
		deps.Prepass = application.NewPrepassService(a.cfg.Prepass, reg, providers.ClassificationPrompt, a.log)
	}
	return application.NewAuditService(a.cfg, deps)
}

func (a *app) decisionService() *application.DecisionService {
	return application.NewDecisionService(decisions.New(a.log), a.cfg.Decisions.Path)
}

func (a *app) scorecardService() *application.ScorecardService {
	return application.NewScorecardService(history.New(), a.log)
}
