package application_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/decisions"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/history"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/ledger"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/reports"
	"github.com/noxaudit/noxaudit/internal/application"
	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/logging"
)

var fixedNow = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC) // a Monday

// fakeGatherer returns canned files per repo path.
type fakeGatherer struct {
	files map[string][]domain.FileContent
}

func (g *fakeGatherer) Gather(repoPath string, _, _ []string) ([]domain.FileContent, error) {
	return g.files[repoPath], nil
}

// fakeProvider ends each batch after runningPolls polls with outcome.
type fakeProvider struct {
	mu           sync.Mutex
	name         string
	model        string
	submitErr    error
	pollErr      error
	runningPolls int
	outcome      domain.BatchOutcome
	findings     []domain.Finding
	usage        domain.Usage
	classified   []domain.Classification
	requests     []domain.BatchRequest
	polls        map[string]int
	nextID       int
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, model: name + "-model", outcome: domain.OutcomeSucceeded, polls: map[string]int{}}
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Model() string { return p.model }

func (p *fakeProvider) LastUsage() domain.Usage { return p.usage }

func (p *fakeProvider) Submit(_ context.Context, req domain.BatchRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.submitErr != nil {
		return "", p.submitErr
	}
	p.requests = append(p.requests, req)
	p.nextID++
	return fmt.Sprintf("%s-batch-%d", p.name, p.nextID), nil
}

func (p *fakeProvider) Poll(_ context.Context, batchID, defaultFocus string) (domain.BatchStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pollErr != nil {
		return domain.BatchStatus{}, p.pollErr
	}
	p.polls[batchID]++
	if p.polls[batchID] <= p.runningPolls {
		return domain.BatchStatus{BatchID: batchID, State: domain.BatchRunning, Counts: domain.RequestCounts{Processing: 1}}, nil
	}
	st := domain.BatchStatus{BatchID: batchID, State: domain.BatchEnded, Outcome: p.outcome, Findings: []domain.Finding{}}
	if p.outcome == domain.OutcomeSucceeded {
		for _, f := range p.findings {
			if f.Focus == "" {
				f.Focus = defaultFocus
			}
			f.ID = domain.FindingID(f.File, f.Title, f.Line, f.Focus)
			st.Findings = append(st.Findings, f)
		}
		st.Counts.Succeeded = 1
	}
	return st, nil
}

func (p *fakeProvider) pollCount(batchID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls[batchID]
}

// classifyingProvider adds the pre-pass capability.
type classifyingProvider struct {
	*fakeProvider
}

func (p classifyingProvider) Classify(_ context.Context, files []domain.FileContent, _ string) ([]domain.Classification, error) {
	return p.classified, nil
}

type fakeResolver map[string]domain.Provider

func (r fakeResolver) Resolve(name, _ string) (domain.Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, domain.NewValidationError("resolve_provider", name, fmt.Errorf("unknown provider"))
	}
	return p, nil
}

type recordingNotifier struct {
	sent []domain.AuditResult
}

func (n *recordingNotifier) Notify(_ context.Context, _ domain.NotificationTarget, r domain.AuditResult) error {
	n.sent = append(n.sent, r)
	return nil
}

type memCosts struct {
	entries []domain.CostEntry
}

func (c *memCosts) Record(_ context.Context, e domain.CostEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func (c *memCosts) Summary(context.Context) ([]domain.CostSummary, error) { return nil, nil }

// harness wires the audit service to real file-backed adapters in a temp dir
// and fakes for everything remote.
type harness struct {
	cfg       domain.Config
	gatherer  *fakeGatherer
	resolver  fakeResolver
	notifier  *recordingNotifier
	costs     *memCosts
	ledger    *ledger.Store
	decisions *decisions.Store
	history   *history.FileHistory
	prepass   *application.PrepassService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := domain.DefaultConfig()
	cfg.Repos = []domain.RepoConfig{
		{Name: "alpha", Path: "/src/alpha"},
		{Name: "beta", Path: "/src/beta"},
	}
	cfg.Provider = "anthropic"
	cfg.Decisions.Path = filepath.Join(dir, "decisions.jsonl")
	cfg.ReportsDir = filepath.Join(dir, "reports")
	cfg.RunsDir = filepath.Join(dir, "runs")
	cfg.LedgerPath = filepath.Join(dir, "pending-batch.json")
	cfg.Batch.PollInterval = time.Millisecond
	cfg.Batch.MaxPollInterval = 2 * time.Millisecond
	cfg.Batch.Timeout = time.Second
	cfg.Notifications = []domain.NotificationTarget{{Channel: "telegram", Target: "42"}}

	files := []domain.FileContent{{Path: "app.py", Content: "print(1)"}}
	return &harness{
		cfg: cfg,
		gatherer: &fakeGatherer{files: map[string][]domain.FileContent{
			"/src/alpha": files,
			"/src/beta":  files,
		}},
		resolver:  fakeResolver{"anthropic": newFakeProvider("anthropic")},
		notifier:  &recordingNotifier{},
		costs:     &memCosts{},
		ledger:    ledger.New(),
		decisions: decisions.New(logging.Nop()),
		history:   history.New(),
	}
}

func (h *harness) provider(name string) *fakeProvider {
	switch p := h.resolver[name].(type) {
	case *fakeProvider:
		return p
	case classifyingProvider:
		return p.fakeProvider
	}
	return nil
}

func (h *harness) service() *application.AuditService {
	return application.NewAuditService(h.cfg, application.AuditDeps{
		Gatherer:  h.gatherer,
		Providers: h.resolver,
		Decisions: h.decisions,
		Ledger:    h.ledger,
		Reports:   reports.New(),
		Notifier:  h.notifier,
		Runs:      h.history,
		Costs:     h.costs,
		Prepass:   h.prepass,
		Log:       logging.Nop(),
		Now:       func() time.Time { return fixedNow },
	})
}
