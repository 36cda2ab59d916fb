package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/engine"
)

// run executes the root command against a throwaway config and store
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CLIENTPULSE_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("CLIENTPULSE_STORE_DRIVER", "sqlite")
	t.Setenv("CLIENTPULSE_STORE_DSN", filepath.Join(dir, "cli.db"))
	t.Setenv("CLIENTPULSE_LOG_FILE", filepath.Join(dir, "cli.log"))
	t.Setenv("CLIENTPULSE_LOG_CONSOLE", "false")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigPath(t *testing.T) {
	out, err := run(t, t.TempDir(), "config", "path")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "config.yaml"))
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, t.TempDir(), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "cli.db")
}

func TestMigrateAndReconcile(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = run(t, dir, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "checked")
}

func TestPrintDrift(t *testing.T) {
	var buf bytes.Buffer
	printDrift(&buf, nil)
	assert.Contains(t, buf.String(), "no drift")

	buf.Reset()
	printDrift(&buf, []apperr.DriftWarning{{Kind: engine.DriftTaskCount, ClientID: "c-1", Detail: "off by one"}})
	assert.Contains(t, buf.String(), "1 drift warning(s)")
	assert.Contains(t, buf.String(), "task_count_mismatch")
	assert.Contains(t, buf.String(), "off by one")
}

func TestPrintReconcileReport(t *testing.T) {
	var buf bytes.Buffer
	printReconcileReport(&buf, engine.ReconcileReport{Checked: 3, Repaired: 1, Elapsed: 1500 * time.Microsecond})
	out := buf.String()
	assert.Contains(t, out, "checked")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "2ms")
}
