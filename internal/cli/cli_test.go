package cli

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/me/relay/pkg/model"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	t.Logf("stderr:\n%s", errOut.String())
	return out.String(), err
}

const passingSuite = `
units:
  - name: setup
    command: sh -c "exit 0"
  - name: verify
    command: sh -c "exit 0"
    depends_on: setup
    delay: 0
  - name: standalone
    command: [sh, -c, "exit 0"]
`

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "plan", "results", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().Int("parallel", 0, "")
	cmd.Flags().Bool("no-store", false, "")
	cmd.Flags().String("strategy", "", "")
	cmd.Flags().String("unrelated", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--parallel", "3", "--no-store", "--unrelated", "x"}))

	flagDebug = false
	assert.Equal(t, map[string]any{
		"parallel_limit": "3",
		"no_store":       "true",
	}, overrides(cmd.Flags()))
}

func TestPlan(t *testing.T) {
	path := writeManifest(t, `
units:
  - name: quick
    command: "true"
  - name: base
    command: "true"
  - name: followup
    command: "true"
    depends_on: base
    delay: 2
`)

	out, err := execute(t, "plan", path, "--tree")
	require.NoError(t, err)

	assert.Regexp(t, `(?s)base.*quick`, out)
	assert.Contains(t, out, "critical path 2 min")
	assert.Contains(t, out, "strategy max-total-delay")
	assert.Regexp(t, `followup\s+0\s+base\s+2 min`, out)
	assert.Regexp(t, `quick\s+0\s+-\s+-`, out)
	assert.Contains(t, out, "  followup (+2 min)")
}

func TestPlan_MissingDependency(t *testing.T) {
	path := writeManifest(t, `
units:
  - name: orphan
    command: "true"
    depends_on: ghost
    delay: 1
`)
	_, err := execute(t, "plan", path)
	assert.ErrorIs(t, err, model.ErrMissingDependency)
}

func TestRun_RecordsResults(t *testing.T) {
	skipWithoutShell(t)
	path := writeManifest(t, passingSuite)
	db := filepath.Join(t.TempDir(), "data", "relay.db")

	out, err := execute(t, "run", path, "--db", db, "--parallel", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "3 passed, 0 failed, 0 fatal")

	m := regexp.MustCompile(`Run (run_\S+) recorded`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	runID := m[1]

	out, err = execute(t, "results", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "passed")

	out, err = execute(t, "results", runID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "verify")
	assert.Contains(t, out, "standalone")
}

func TestRun_FailureCascades(t *testing.T) {
	skipWithoutShell(t)
	path := writeManifest(t, `
units:
  - name: broken
    command: sh -c "exit 1"
  - name: dependent
    command: sh -c "exit 0"
    depends_on: broken
    delay: 0
`)

	out, err := execute(t, "run", path, "--no-store")
	assert.ErrorIs(t, err, ErrUnitsFailed)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "0 passed, 2 failed, 0 fatal")

	_, err = execute(t, "run", path, "--no-store", "--ignore-failures")
	assert.NoError(t, err)
}

func TestRun_OnlyFilter(t *testing.T) {
	skipWithoutShell(t)
	path := writeManifest(t, passingSuite)

	out, err := execute(t, "run", path, "--no-store", "--only", "standalone")
	require.NoError(t, err)
	assert.Contains(t, out, "1 units in")
}

func TestRun_ConfigErrorRecordsNothing(t *testing.T) {
	path := writeManifest(t, `
units:
  - name: a
    command: "true"
    depends_on: b
    delay: 0
  - name: b
    command: "true"
    depends_on: a
    delay: 0
`)
	db := filepath.Join(t.TempDir(), "relay.db")

	_, err := execute(t, "run", path, "--db", db)
	assert.ErrorIs(t, err, model.ErrNotATree)
	assert.NoFileExists(t, db)
}

func TestRun_InvalidParallel(t *testing.T) {
	path := writeManifest(t, passingSuite)
	_, err := execute(t, "run", path, "--no-store", "--parallel", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel_limit")
}

func TestResults_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "relay.db")
	_, err := execute(t, "results", "run_missing", "--db", db)
	assert.ErrorContains(t, err, `run "run_missing" not found`)
}

func TestRun_DebugLogsStatusChanges(t *testing.T) {
	skipWithoutShell(t)
	path := writeManifest(t, passingSuite)

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"run", path, "--no-store", "--debug"})
	require.NoError(t, root.Execute())

	logs := errOut.String()
	assert.Contains(t, logs, "component=status")
	assert.Contains(t, logs, "unit=verify status=done result=passed")
}
