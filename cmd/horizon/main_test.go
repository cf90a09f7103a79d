package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "horizon")
}

func TestMigrateUpAndStatus(t *testing.T) {
	db := filepath.Join(t.TempDir(), "out.db")
	_, err := execute(t, "migrate", "up", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "migrate", "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")
	assert.Contains(t, out, "clean")
}

func TestRunVersionFlagShortCircuits(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "run.cfg")
	require.NoError(t, os.WriteFile(cfgPath, []byte("--version\n"), 0o644))

	out, err := execute(t, "run", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "horizon")
}

func TestRunRejectsMissingInput(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "run.cfg")
	require.NoError(t, os.WriteFile(cfgPath, []byte("--input missing.dat\n"), 0o644))

	_, err := execute(t, "run", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot locate input file")
}

func TestConvertRejectsMissingDatabase(t *testing.T) {
	_, err := execute(t, "convert", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
}

func TestReportRejectsUnknownFormat(t *testing.T) {
	db := filepath.Join(t.TempDir(), "out.db")
	_, err := execute(t, "migrate", "up", "--db", db)
	require.NoError(t, err)

	_, err = execute(t, "report", "base", "--db", db, "--format", "docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report format")
}
