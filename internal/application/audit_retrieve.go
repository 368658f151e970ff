package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// round is the outcome of polling a pending set once.
type round struct {
	finished  []domain.AuditResult
	polling   []domain.AuditResult
	failures  []UnitError
	failedIDs []string
	remaining domain.PendingSet
}

// collect polls every batch of set not in skip. Each ended batch is processed
// and the ledger rewritten right away, so a batch is never processed twice.
// An empty remainder clears the ledger.
func (s *AuditService) collect(ctx context.Context, set domain.PendingSet, skip map[string]bool, path string) (round, error) {
	r := round{remaining: set}
	defaultFocus := defaultFocusOf(set.Focus)
	decisions := s.loadDecisions()

	for _, b := range set.Batches {
		if skip[b.BatchID] {
			continue
		}
		log := s.log.With().
			Str("repo", b.Repo).
			Str("focus", set.Focus).
			Str("provider", b.Provider).
			Str("batch_id", b.BatchID).
			Logger()

		res, ended, err := s.retrieveOne(ctx, set, b, defaultFocus, decisions, log)
		if err != nil {
			log.Error().Err(err).Msg("retrieval failed, batch kept in ledger")
			r.failures = append(r.failures, UnitError{Repo: b.Repo, Err: err})
			r.failedIDs = append(r.failedIDs, b.BatchID)
			continue
		}
		if !ended {
			r.polling = append(r.polling, res)
			continue
		}

		r.finished = append(r.finished, res)
		r.remaining = r.remaining.Without(map[string]bool{b.BatchID: true})
		if err := s.persist(path, r.remaining); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (s *AuditService) persist(path string, set domain.PendingSet) error {
	if set.IsEmpty() {
		if err := s.deps.Ledger.Clear(path); err != nil {
			return fmt.Errorf("clearing pending ledger: %w", err)
		}
		return nil
	}
	if err := s.deps.Ledger.Save(path, set); err != nil {
		return fmt.Errorf("saving pending ledger: %w", err)
	}
	return nil
}

// loadDecisions reads the full decision ledger. Expiry is applied by the
// reconciliation filter.
func (s *AuditService) loadDecisions() []domain.Decision {
	decisions, err := s.deps.Decisions.Load(s.cfg.Decisions.Path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.cfg.Decisions.Path).Msg("ignoring decision ledger")
		return nil
	}
	return decisions
}

func (s *AuditService) retrieveOne(
	ctx context.Context,
	set domain.PendingSet,
	b domain.PendingBatch,
	defaultFocus string,
	decisions []domain.Decision,
	log zerolog.Logger,
) (domain.AuditResult, bool, error) {
	provider, err := s.deps.Providers.Resolve(b.Provider, b.Model)
	if err != nil {
		return domain.AuditResult{}, false, err
	}
	status, err := provider.Poll(ctx, b.BatchID, defaultFocus)
	if err != nil {
		return domain.AuditResult{}, false, err
	}

	res := domain.AuditResult{
		Repo:        b.Repo,
		Focus:       set.Focus,
		Provider:    provider.Name(),
		Model:       provider.Model(),
		Stage:       domain.StagePolling,
		BatchID:     b.BatchID,
		Findings:    []domain.Finding{},
		NewFindings: []domain.Finding{},
		FileCount:   b.FileCount,
		Timestamp:   s.now(),
	}
	if !status.Ended() {
		log.Debug().Str("state", string(status.State)).Int("processing", status.Counts.Processing).Msg("batch still processing")
		return res, false, nil
	}

	res, err = s.finalize(ctx, res, status, provider, set.SubmittedAt, decisions, log)
	return res, err == nil, err
}

// finalize performs the terminal transition: reconciliation, report, then
// best-effort notification, run record and cost entry.
func (s *AuditService) finalize(
	ctx context.Context,
	res domain.AuditResult,
	status domain.BatchStatus,
	provider domain.Provider,
	submittedAt time.Time,
	decisions []domain.Decision,
	log zerolog.Logger,
) (domain.AuditResult, error) {
	repoPath := ""
	if repo, ok := s.cfg.Repo(res.Repo); ok {
		repoPath = repo.Path
	} else {
		log.Warn().Msg("repo no longer configured, file-scoped decisions match relative paths only")
	}

	if status.Findings != nil {
		res.Findings = status.Findings
	}
	res.NewFindings, res.ResolvedCount = domain.FilterFindings(
		res.Findings, decisions, repoPath, s.cfg.Decisions.ExpiryDays, s.now())
	if res.NewFindings == nil {
		res.NewFindings = []domain.Finding{}
	}
	res.Outcome = status.Outcome
	res.Stage = domain.StageEndedEmpty
	if status.Outcome == domain.OutcomeSucceeded {
		res.Stage = domain.StageEndedSuccess
	}
	res.Usage = provider.LastUsage()

	if s.deps.Git != nil && repoPath != "" {
		if hash, err := s.deps.Git.CommitHash(repoPath); err == nil {
			res.CommitHash = hash
		} else {
			log.Debug().Err(err).Msg("no commit hash")
		}
	}

	reportPath, err := s.deps.Reports.Save(s.cfg.ReportsDir, res)
	if err != nil {
		return res, fmt.Errorf("saving report: %w", err)
	}
	res.ReportPath = reportPath
	log.Info().
		Str("outcome", string(res.Outcome)).
		Int("findings", len(res.Findings)).
		Int("new", len(res.NewFindings)).
		Int("resolved", res.ResolvedCount).
		Str("report", reportPath).
		Msg("batch processed")

	if s.deps.Notifier != nil {
		for _, target := range s.cfg.Notifications {
			if err := s.deps.Notifier.Notify(ctx, target, res); err != nil {
				log.Warn().Err(err).Str("channel", target.Channel).Msg("notification failed")
			}
		}
	}

	// Run records carry the list price so the scorecard can project the
	// batch price itself. The cost ledger records what was billed.
	listCost, priced := domain.EstimateCost(res.Provider, res.Model, res.Usage, false)
	if !priced {
		log.Debug().Str("model", res.Model).Msg("no pricing for model, cost recorded as zero")
	}
	billed, _ := domain.EstimateCost(res.Provider, res.Model, res.Usage, true)
	s.recordRun(res, listCost, submittedAt, log)
	s.recordCost(ctx, res, billed, log)
	return res, nil
}

func (s *AuditService) recordRun(res domain.AuditResult, cost float64, submittedAt time.Time, log zerolog.Logger) {
	if s.deps.Runs == nil {
		return
	}
	var duration time.Duration
	if !submittedAt.IsZero() {
		duration = s.now().Sub(submittedAt)
	}
	rec, err := s.deps.Runs.Record(s.cfg.RunsDir, domain.NewRunRecord(res, 0, cost, duration))
	if err != nil {
		log.Warn().Err(err).Msg("run record not written")
		return
	}
	log.Debug().Int("run_number", rec.RunNumber).Str("path", rec.Source).Msg("run recorded")
}

func (s *AuditService) recordCost(ctx context.Context, res domain.AuditResult, cost float64, log zerolog.Logger) {
	if s.deps.Costs == nil {
		return
	}
	err := s.deps.Costs.Record(ctx, domain.CostEntry{
		Timestamp: res.Timestamp,
		Repo:      res.Repo,
		Focus:     res.Focus,
		Provider:  res.Provider,
		Model:     res.Model,
		BatchID:   res.BatchID,
		Batch:     true,
		Usage:     res.Usage,
		CostUSD:   cost,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cost entry not written")
	}
}
