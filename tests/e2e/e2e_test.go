package e2e_test

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxaudit/noxaudit/internal/domain"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build binary before running tests
	dir, err := os.MkdirTemp("", "noxaudit-e2e")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	binaryPath = filepath.Join(dir, "noxaudit")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/noxaudit")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

func fixturePath() string {
	abs, _ := filepath.Abs("../../testdata/sample-repo")
	return abs
}

func run(t *testing.T, dir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "ANTHROPIC_API_KEY=", "GEMINI_API_KEY=", "TELEGRAM_BOT_TOKEN=")
	out, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	return string(out), exitCode
}

// workspace writes a config auditing the fixture repo and returns its dir.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("repos:\n  - name: sample\n    path: %q\nprovider: anthropic\nlogging:\n  level: error\n", fixturePath())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noxaudit.yml"), []byte(cfg), 0644))
	return dir
}

// --- Version / Focus ---

func TestE2E_Version(t *testing.T) {
	out, code := run(t, t.TempDir(), "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "noxaudit")
}

func TestE2E_Focus(t *testing.T) {
	out, code := run(t, t.TempDir(), "focus")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "security")
	assert.Contains(t, out, "dependencies")
}

// --- Init ---

func TestE2E_InitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, code := run(t, dir, "init")
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(dir, "noxaudit.yml"))

	_, code = run(t, dir, "init")
	assert.Equal(t, 1, code, "second init must refuse to overwrite")
}

// --- Submit ---

func TestE2E_SubmitDryRun(t *testing.T) {
	dir := workspace(t)
	out, code := run(t, dir, "submit", "--focus", "security+testing", "--dry-run")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "files would be submitted")
	assert.NoFileExists(t, filepath.Join(dir, ".noxaudit", "pending-batch.json"))
}

func TestE2E_SubmitUnknownFocusFails(t *testing.T) {
	out, code := run(t, workspace(t), "submit", "--focus", "nonsense", "--dry-run")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "unknown focus area")
}

func TestE2E_SubmitUnknownRepoFails(t *testing.T) {
	out, code := run(t, workspace(t), "submit", "--repo", "missing", "--focus", "security", "--dry-run")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "unknown repo")
}

// --- Status / Decisions ---

func TestE2E_StatusEmpty(t *testing.T) {
	out, code := run(t, workspace(t), "status", "--json")
	assert.Equal(t, 0, code)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "null", string(payload["pending"]))
}

func TestE2E_DecideRoundTrip(t *testing.T) {
	dir := workspace(t)
	_, code := run(t, dir, "decide", "abcdefabcdef", "--reason", "known", "--by", "ci")
	require.Equal(t, 0, code)

	out, code := run(t, dir, "decisions")
	require.Equal(t, 0, code)
	var decisions []domain.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &decisions))
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.DecisionAccept, decisions[0].Type)
}
