package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCatalogDumpThenValidate(t *testing.T) {
	out, err := execute(t, "catalog", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "report_created")

	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	out, err = execute(t, "catalog", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "13 badges")
}

func TestCatalogValidate_RejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("level_thresholds = [5]\n"), 0o600))

	_, err := execute(t, "catalog", "validate", path)
	assert.Error(t, err)
}

func TestSyncUser_RequiresArgs(t *testing.T) {
	_, err := execute(t, "sync-user")
	assert.Error(t, err)
}
