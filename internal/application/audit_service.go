package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/focus"
)

// AuditDeps are the ports the audit pipeline drives. Runs, Costs, Git and
// Prepass may be nil.
type AuditDeps struct {
	Gatherer  domain.FileGatherer
	Providers domain.ProviderResolver
	Decisions domain.DecisionStore
	Ledger    domain.PendingLedger
	Reports   domain.ReportStore
	Notifier  domain.Notifier
	Runs      domain.RunRecorder
	Costs     domain.CostLedger
	Git       domain.GitInfo
	Prepass   *PrepassService
	Log       zerolog.Logger
	Now       func() time.Time
}

// AuditOptions select what one invocation audits. Zero values fall back to
// the configuration.
type AuditOptions struct {
	Repo       string
	Focus      string
	Provider   string
	Model      string
	DryRun     bool
	LedgerPath string
	Force      bool
	Timeout    time.Duration
}

// UnitError is a failure isolated to one repo. Other repos of the same
// invocation still run.
type UnitError struct {
	Repo string
	Err  error
}

func (e UnitError) Error() string { return e.Repo + ": " + e.Err.Error() }
func (e UnitError) Unwrap() error { return e.Err }

// RunReport is what one invocation produced.
type RunReport struct {
	Focus    string
	Results  []domain.AuditResult
	Failures []UnitError
	// Pending is the ledger content left behind, nil when nothing is pending.
	Pending *domain.PendingSet
	// Off is set when the schedule marks today as off and no focus was given.
	Off bool
}

// AuditService drives the per-(repo, focus) state machine:
// gathering → no_files | dry_run | submitted → polling → ended_success | ended_empty.
type AuditService struct {
	cfg  domain.Config
	deps AuditDeps
	log  zerolog.Logger
	now  func() time.Time
}

func NewAuditService(cfg domain.Config, deps AuditDeps) *AuditService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AuditService{
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With().Str("component", "audit").Logger(),
		now:  now,
	}
}

// Submit gathers files and creates one remote job per repo. Each accepted
// job is written to the ledger before the next repo starts.
func (s *AuditService) Submit(ctx context.Context, opts AuditOptions) (RunReport, error) {
	expr := opts.Focus
	if expr == "" {
		expr = s.cfg.GetTodayFocus(s.now())
	}
	if focus.Normalize(expr) == domain.ScheduleOff {
		s.log.Info().Msg("today is scheduled as off, use --focus to override")
		return RunReport{Off: true}, nil
	}

	area, names, err := focus.Build(expr)
	if err != nil {
		return RunReport{}, err
	}
	repos, err := s.selectRepos(opts.Repo)
	if err != nil {
		return RunReport{}, err
	}

	ledgerPath := s.ledgerPath(opts.LedgerPath)
	var replacing bool
	if !opts.DryRun {
		if replacing, err = s.checkConflict(ledgerPath, opts.Force); err != nil {
			return RunReport{}, err
		}
	}

	decisions := s.activeDecisions()
	decisionContext := domain.FormatDecisionContext(decisions)

	report := RunReport{Focus: area.Name()}
	set := domain.PendingSet{
		SubmissionID: uuid.NewString(),
		SubmittedAt:  s.now().UTC(),
		Focus:        area.Name(),
	}
	for _, repo := range repos {
		res, batch, err := s.submitRepo(ctx, repo, area, names, decisionContext, len(decisions), opts)
		if err != nil {
			s.log.Error().Err(err).Str("repo", repo.Name).Str("focus", area.Name()).Msg("submission failed")
			report.Failures = append(report.Failures, UnitError{Repo: repo.Name, Err: err})
			continue
		}
		if batch != nil {
			set = set.Add(*batch)
			if err := s.deps.Ledger.Save(ledgerPath, set); err != nil {
				return report, fmt.Errorf("saving pending ledger: %w", err)
			}
		}
		report.Results = append(report.Results, res)
	}

	if set.IsEmpty() && replacing {
		if err := s.deps.Ledger.Clear(ledgerPath); err != nil {
			return report, fmt.Errorf("clearing pending ledger: %w", err)
		}
		s.log.Info().Str("ledger", ledgerPath).Msg("no new batches, discarded the forced ledger")
	}
	if !set.IsEmpty() {
		report.Pending = &set
		s.log.Info().Int("batches", len(set.Batches)).Str("ledger", ledgerPath).
			Str("submission_id", set.SubmissionID).Msg("submission recorded")
	}
	return report, nil
}

// Retrieve polls every pending job once. Ended jobs are processed and removed
// from the ledger; the rest stay for a later call.
func (s *AuditService) Retrieve(ctx context.Context, ledgerPath string) (RunReport, error) {
	path := s.ledgerPath(ledgerPath)
	set, err := s.deps.Ledger.Load(path)
	if err != nil {
		return RunReport{}, err
	}
	if set.IsEmpty() {
		s.log.Info().Str("ledger", path).Msg("no pending batches")
		return RunReport{}, nil
	}

	r, err := s.collect(ctx, *set, nil, path)
	report := RunReport{
		Focus:    set.Focus,
		Results:  append(r.finished, r.polling...),
		Failures: r.failures,
	}
	if !r.remaining.IsEmpty() {
		report.Pending = &r.remaining
	}
	return report, err
}

// Run submits and then polls until every job ended or the deadline passed.
// Jobs still running at the deadline are reported as polling and stay in the
// ledger for Retrieve.
func (s *AuditService) Run(ctx context.Context, opts AuditOptions) (RunReport, error) {
	report, err := s.Submit(ctx, opts)
	if err != nil || report.Pending == nil {
		return report, err
	}

	terminal := report.Results[:0]
	for _, res := range report.Results {
		if res.Stage.Terminal() {
			terminal = append(terminal, res)
		}
	}
	report.Results = terminal

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Batch.Timeout
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	interval, maxInterval := s.pollIntervals()
	path := s.ledgerPath(opts.LedgerPath)
	set := *report.Pending
	failed := make(map[string]bool)

	for {
		r, err := s.collect(ctx, set, failed, path)
		report.Results = append(report.Results, r.finished...)
		report.Failures = append(report.Failures, r.failures...)
		for _, id := range r.failedIDs {
			failed[id] = true
		}
		set = r.remaining
		if err != nil {
			report.Pending = &set
			return report, err
		}
		if len(r.polling) == 0 {
			break
		}

		s.log.Info().Int("pending", len(r.polling)).Dur("next_poll", interval).Msg("batches still processing")
		select {
		case <-ctx.Done():
			report.Results = append(report.Results, r.polling...)
			report.Pending = &set
			return report, ctx.Err()
		case <-deadline:
			s.log.Warn().Str("ledger", path).Msg("poll deadline reached, run retrieve later")
			report.Results = append(report.Results, r.polling...)
			report.Pending = &set
			return report, nil
		case <-time.After(interval):
		}
		interval = min(interval*2, maxInterval)
	}

	if !set.IsEmpty() {
		report.Pending = &set
	} else {
		report.Pending = nil
	}
	return report, nil
}

// Status returns the pending set and, when check is set, one fresh status per
// job. Nothing is processed or removed.
func (s *AuditService) Status(ctx context.Context, ledgerPath string, check bool) (*domain.PendingSet, map[string]domain.BatchStatus, error) {
	set, err := s.deps.Ledger.Load(s.ledgerPath(ledgerPath))
	if err != nil || set.IsEmpty() || !check {
		return set, nil, err
	}
	defaultFocus := defaultFocusOf(set.Focus)
	statuses := make(map[string]domain.BatchStatus, len(set.Batches))
	for _, b := range set.Batches {
		provider, err := s.deps.Providers.Resolve(b.Provider, b.Model)
		if err != nil {
			return set, statuses, err
		}
		st, err := provider.Poll(ctx, b.BatchID, defaultFocus)
		if err != nil {
			s.log.Warn().Err(err).Str("repo", b.Repo).Str("batch_id", b.BatchID).Msg("status check failed")
			continue
		}
		statuses[b.BatchID] = st
	}
	return set, statuses, nil
}

// Drop removes jobs from the pending set without processing them. It is the
// way out for a job whose output can never be parsed. Unknown ids are
// rejected and nothing is removed.
func (s *AuditService) Drop(ledgerPath string, batchIDs []string) ([]domain.PendingBatch, error) {
	path := s.ledgerPath(ledgerPath)
	set, err := s.deps.Ledger.Load(path)
	if err != nil {
		return nil, err
	}

	drop := make(map[string]bool, len(batchIDs))
	for _, id := range batchIDs {
		drop[id] = true
	}
	var dropped []domain.PendingBatch
	if !set.IsEmpty() {
		for _, b := range set.Batches {
			if drop[b.BatchID] {
				dropped = append(dropped, b)
			}
		}
	}
	if len(dropped) != len(drop) {
		found := make(map[string]bool, len(dropped))
		for _, b := range dropped {
			found[b.BatchID] = true
		}
		var missing []string
		for _, id := range batchIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, domain.NewValidationError("drop", path,
			fmt.Errorf("not pending: %s", strings.Join(missing, ", ")))
	}

	for _, b := range dropped {
		s.log.Warn().Str("repo", b.Repo).Str("batch_id", b.BatchID).Msg("dropping pending batch unprocessed")
	}
	if err := s.persist(path, set.Without(drop)); err != nil {
		return nil, err
	}
	return dropped, nil
}

func (s *AuditService) selectRepos(name string) ([]domain.RepoConfig, error) {
	if name == "" {
		if len(s.cfg.Repos) == 0 {
			return nil, domain.NewValidationError("select_repo", "", errors.New("no repositories configured"))
		}
		return s.cfg.Repos, nil
	}
	repo, ok := s.cfg.Repo(name)
	if !ok {
		available := make([]string, 0, len(s.cfg.Repos))
		for _, r := range s.cfg.Repos {
			available = append(available, r.Name)
		}
		return nil, domain.NewValidationError("select_repo", name,
			fmt.Errorf("unknown repo (available: %s)", strings.Join(available, ", ")))
	}
	return []domain.RepoConfig{repo}, nil
}

func (s *AuditService) ledgerPath(path string) string {
	switch {
	case path != "":
		return path
	case s.cfg.LedgerPath != "":
		return s.cfg.LedgerPath
	}
	return domain.DefaultLedgerPath
}

// checkConflict refuses to replace a ledger that still tracks jobs or that
// cannot be read. With force it reports true and the caller overwrites it.
func (s *AuditService) checkConflict(path string, force bool) (bool, error) {
	existing, err := s.deps.Ledger.Load(path)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedInput) {
			return false, err
		}
		if !force {
			return false, domain.NewConflictError("submit", path, fmt.Errorf(
				"pending ledger is unreadable (%v); pass --force to replace it", err))
		}
		s.log.Warn().Err(err).Str("ledger", path).Msg("replacing unreadable pending ledger")
		return true, nil
	}
	if existing.IsEmpty() {
		return false, nil
	}
	if !force {
		return false, domain.NewConflictError("submit", path, fmt.Errorf(
			"%d batches from %s are still pending; run retrieve first or pass --force",
			len(existing.Batches), existing.SubmittedAt.Format(time.RFC3339)))
	}
	s.log.Warn().Str("ledger", path).Int("batches", len(existing.Batches)).
		Msg("overwriting pending ledger, earlier batches will not be retrieved")
	return true, nil
}

// activeDecisions loads the decision ledger and drops expired entries. A
// broken ledger is logged and treated as empty.
func (s *AuditService) activeDecisions() []domain.Decision {
	all, err := s.deps.Decisions.Load(s.cfg.Decisions.Path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.cfg.Decisions.Path).Msg("ignoring decision ledger")
		return nil
	}
	now := s.now()
	active := make([]domain.Decision, 0, len(all))
	for _, d := range all {
		if !d.Expired(now, s.cfg.Decisions.ExpiryDays) {
			active = append(active, d)
		}
	}
	return active
}

func (s *AuditService) providerFor(repo string, opts AuditOptions) (name, model string) {
	name = opts.Provider
	if name == "" {
		name = s.cfg.ProviderForRepo(repo)
	}
	model = opts.Model
	if model == "" && strings.EqualFold(name, s.cfg.Provider) {
		model = s.cfg.Model
	}
	return name, model
}

func (s *AuditService) submitRepo(
	ctx context.Context,
	repo domain.RepoConfig,
	area domain.FocusArea,
	names []string,
	decisionContext string,
	decisionCount int,
	opts AuditOptions,
) (domain.AuditResult, *domain.PendingBatch, error) {
	log := s.log.With().Str("repo", repo.Name).Str("focus", area.Name()).Logger()

	files, err := s.deps.Gatherer.Gather(repo.Path, area.Patterns(), repo.ExcludePatterns)
	if err != nil {
		return domain.AuditResult{}, nil, fmt.Errorf("gathering files: %w", err)
	}
	log.Info().Int("files", len(files)).Msg("gathered files")

	if len(files) == 0 {
		log.Info().Msg("no files to audit, skipping")
		return s.placeholder(repo.Name, area.Name(), domain.ProviderNone, domain.StageNoFiles, 0), nil, nil
	}
	if opts.DryRun {
		log.Info().
			Int("files", len(files)).
			Int("prompt_chars", len(area.Prompt())).
			Int("decisions", decisionCount).
			Msg("dry run, nothing submitted")
		return s.placeholder(repo.Name, area.Name(), domain.ProviderDryRun, domain.StageDryRun, len(files)), nil, nil
	}

	name, model := s.providerFor(repo.Name, opts)
	provider, err := s.deps.Providers.Resolve(name, model)
	if err != nil {
		return domain.AuditResult{}, nil, err
	}
	if s.deps.Prepass != nil {
		files = s.deps.Prepass.Filter(ctx, repo.Name, provider, files, names)
	}

	batchID, err := provider.Submit(ctx, domain.BatchRequest{
		Files:           files,
		SystemPrompt:    area.Prompt(),
		DecisionContext: decisionContext,
		CustomID:        CustomID(repo.Name, area.Name()),
		DefaultFocus:    focus.DefaultFocus(names),
	})
	if err != nil {
		return domain.AuditResult{}, nil, err
	}
	log.Info().Str("provider", provider.Name()).Str("model", provider.Model()).
		Str("batch_id", batchID).Int("files", len(files)).Msg("batch submitted")

	res := domain.AuditResult{
		Repo:      repo.Name,
		Focus:     area.Name(),
		Provider:  provider.Name(),
		Model:     provider.Model(),
		Stage:     domain.StageSubmitted,
		BatchID:   batchID,
		Findings:  []domain.Finding{},
		FileCount: len(files),
		Timestamp: s.now(),
	}
	batch := &domain.PendingBatch{
		Repo:      repo.Name,
		BatchID:   batchID,
		Provider:  provider.Name(),
		Model:     provider.Model(),
		FileCount: len(files),
	}
	return res, batch, nil
}

func (s *AuditService) placeholder(repo, focusName, provider string, stage domain.Stage, files int) domain.AuditResult {
	return domain.AuditResult{
		Repo:        repo,
		Focus:       focusName,
		Provider:    provider,
		Stage:       stage,
		Findings:    []domain.Finding{},
		NewFindings: []domain.Finding{},
		FileCount:   files,
		Timestamp:   s.now(),
	}
}

var customIDUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CustomID labels a request inside a provider job. Providers accept at most
// 64 characters from [a-zA-Z0-9_-].
func CustomID(repo, focusName string) string {
	id := customIDUnsafe.ReplaceAllString(repo+"-"+focusName, "_")
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}

func defaultFocusOf(expr string) string {
	names, err := focus.Resolve(expr)
	if err != nil {
		return ""
	}
	return focus.DefaultFocus(names)
}

func (s *AuditService) pollIntervals() (time.Duration, time.Duration) {
	interval := s.cfg.Batch.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxInterval := s.cfg.Batch.MaxPollInterval
	if maxInterval < interval {
		maxInterval = interval
	}
	return interval, maxInterval
}
