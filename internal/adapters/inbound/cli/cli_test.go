package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxaudit/noxaudit/internal/adapters/inbound/cli"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/config"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/costledger"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/history"
	"github.com/noxaudit/noxaudit/internal/adapters/outbound/ledger"
	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/logging"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCmdForTest()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeConfig writes a noxaudit.yml auditing repoPath with all state kept
// under a temp directory.
func writeConfig(t *testing.T, repoPath string) (string, string) {
	t.Helper()
	state := t.TempDir()
	content := fmt.Sprintf(`repos:
  - name: sample
    path: %q
provider: anthropic
decisions:
  path: %q
reports_dir: %q
runs_dir: %q
ledger_path: %q
cost_ledger: %q
logging:
  level: error
`,
		repoPath,
		filepath.Join(state, "decisions.jsonl"),
		filepath.Join(state, "reports"),
		filepath.Join(state, "runs"),
		filepath.Join(state, "pending-batch.json"),
		filepath.Join(state, "costs.db"),
	)
	path := filepath.Join(state, "noxaudit.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, state
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "noxaudit dev")
}

func TestMCPCommandExists(t *testing.T) {
	_, err := execute(t, "mcp", "--help")
	assert.NoError(t, err)
}

func TestMCPServeCommandExists(t *testing.T) {
	_, err := execute(t, "mcp", "serve", "--help")
	assert.NoError(t, err)
}

func TestFocusCmd_ListsAreas(t *testing.T) {
	out, err := execute(t, "focus")
	require.NoError(t, err)
	for _, name := range []string{"security", "patterns", "docs", "testing", "hygiene", "dependencies"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "does_it_work")
}

func TestInitCmd_CreatesLoadableConfig(t *testing.T) {
	tmpDir := t.TempDir()

	out, err := execute(t, "init", tmpDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created noxaudit.yml")

	cfg, err := config.New().Load(filepath.Join(tmpDir, config.DefaultPath))
	require.NoError(t, err)
	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, filepath.Base(tmpDir), cfg.Repos[0].Name)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, domain.DefaultConfig().Schedule, cfg.Schedule)
	assert.Equal(t, domain.DefaultConfig().Batch, cfg.Batch)

	data, err := os.ReadFile(filepath.Join(tmpDir, config.DefaultPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), "0 keeps them forever")
}

func TestInitCmd_GeminiProvider(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := execute(t, "init", tmpDir, "--provider", "gemini")
	require.NoError(t, err)

	cfg, err := config.New().Load(filepath.Join(tmpDir, config.DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
}

func TestInitCmd_RejectsUnknownProvider(t *testing.T) {
	_, err := execute(t, "init", t.TempDir(), "--provider", "openai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestInitCmd_FailsIfExists(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, config.DefaultPath), []byte("existing"), 0644))

	_, err := execute(t, "init", tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	dest := filepath.Join(tmpDir, config.DefaultPath)
	require.NoError(t, os.WriteFile(dest, []byte("existing"), 0644))

	_, err := execute(t, "init", tmpDir, "--force")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "schedule:")
}

func TestSubmitCmd_DryRun(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "app.py"), []byte("print('hi')\n"), 0644))
	cfgPath, state := writeConfig(t, repo)

	out, err := execute(t, "--config", cfgPath, "submit", "--focus", "security", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "1 files would be submitted")

	_, statErr := os.Stat(filepath.Join(state, "pending-batch.json"))
	assert.True(t, os.IsNotExist(statErr), "dry run must not write the ledger")
}

func TestSubmitCmd_UnknownFocus(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfgPath, "submit", "--focus", "nonsense", "--dry-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStatusCmd_NothingPending(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending batches.")
}

func TestRetrieveCmd_NothingPending(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "retrieve")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending batches.")
}

func TestDecideCmd_RecordsAndLists(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "decide", "0123456789ab",
		"--type", "ignore", "--file", "src/app.py", "--reason", "test fixture", "--by", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded ignore for 0123456789ab (src/app.py)")

	out, err = execute(t, "--config", cfgPath, "decisions")
	require.NoError(t, err)
	var listed []domain.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, domain.DecisionIgnore, listed[0].Type)
	assert.Equal(t, "alice", listed[0].By)
}

func TestDecideCmd_RejectsBadID(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfgPath, "decide", "not-an-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestScorecardCmd_WritesMarkdown(t *testing.T) {
	cfgPath, state := writeConfig(t, t.TempDir())
	runs := filepath.Join(state, "runs")
	h := history.New()
	for i := 0; i < 2; i++ {
		_, err := h.Record(runs, domain.RunRecord{
			Provider:      "gemini",
			Model:         "gemini-2.5-flash",
			Repo:          "sample",
			Focus:         "security",
			FindingsCount: 1,
			Findings:      []domain.RunFinding{{ID: "aaaaaaaaaaaa", Severity: domain.SeverityHigh, File: "a.py"}},
		})
		require.NoError(t, err)
	}

	out, err := execute(t, "--config", cfgPath, "scorecard")
	require.NoError(t, err)
	assert.Contains(t, out, "# Noxaudit Provider Quality Scorecard")
	assert.Contains(t, out, "gemini-2.5-flash")

	dest := filepath.Join(state, "out", "scorecard.json")
	out, err = execute(t, "--config", cfgPath, "scorecard", "--format", "json", "--output", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "2 runs")
	_, err = os.Stat(dest)
	assert.NoError(t, err)
}

func TestScorecardCmd_UnknownFormat(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfgPath, "scorecard", "--format", "xml")
	assert.Error(t, err)
}

func TestCostsCmd_EmptyLedger(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "costs", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "pricing_as_of")
}

func TestCostsCmd_RecentEntries(t *testing.T) {
	cfgPath, state := writeConfig(t, t.TempDir())
	store, err := costledger.Open(filepath.Join(state, "costs.db"), logging.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), domain.CostEntry{
		Timestamp: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		Repo:      "sample",
		Focus:     "security",
		Provider:  "anthropic",
		Model:     "claude-sonnet-4-5",
		BatchID:   "msgbatch_1",
		Batch:     true,
		Usage:     domain.Usage{InputTokens: 1000},
		CostUSD:   0.0015,
	}))
	require.NoError(t, store.Close())

	out, err := execute(t, "--config", cfgPath, "costs", "--json", "--recent", "5")
	require.NoError(t, err)
	var payload struct {
		Recent []domain.CostEntry `json:"recent"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload.Recent, 1)
	assert.Equal(t, "msgbatch_1", payload.Recent[0].BatchID)

	out, err = execute(t, "--config", cfgPath, "costs", "--recent", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "sample/security")
}

func TestRetrieveCmd_DropRemovesBatch(t *testing.T) {
	cfgPath, state := writeConfig(t, t.TempDir())
	ledgerPath := filepath.Join(state, "pending-batch.json")
	require.NoError(t, ledger.New().Save(ledgerPath, domain.PendingSet{
		SubmittedAt: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		Focus:       "security",
		Batches: []domain.PendingBatch{
			{Repo: "sample", BatchID: "msgbatch_bad", Provider: "anthropic"},
			{Repo: "other", BatchID: "msgbatch_ok", Provider: "anthropic"},
		},
	}))

	_, err := execute(t, "--config", cfgPath, "retrieve", "--drop", "msgbatch_missing")
	require.ErrorIs(t, err, domain.ErrValidation)

	out, err := execute(t, "--config", cfgPath, "retrieve", "--drop", "msgbatch_bad")
	require.NoError(t, err)
	assert.Contains(t, out, "Dropped msgbatch_bad")

	set, err := ledger.New().Load(ledgerPath)
	require.NoError(t, err)
	require.Len(t, set.Batches, 1)
	assert.Equal(t, "msgbatch_ok", set.Batches[0].BatchID)
}
