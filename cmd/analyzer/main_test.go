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
	cfgFile = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	data := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(data, "regions.csv"),
		[]byte("region_id,label\n1,North\n2,South\n3,East\n4,West\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "stores.csv"),
		[]byte("store_id,region_id,opened\n10,1,2020-01-01\n11,2,2020-02-01\n12,2,2021-03-05\n13,4,2022-07-19\n"), 0o644))
	out := filepath.Join(t.TempDir(), "reports")

	stdout, err := execute(t, "scan", data, "--output", out, "--format", "markdown,mermaid", "--title", "Stores", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, stdout, "📂")
	assert.Contains(t, stdout, "✅")
	assert.Contains(t, stdout, "datasets")

	report, err := os.ReadFile(filepath.Join(out, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Stores")
	assert.FileExists(t, filepath.Join(out, "er_diagram.mmd"))
	assert.NoFileExists(t, filepath.Join(out, "model.json"))
}

func TestScanRejectsBadFormat(t *testing.T) {
	_, err := execute(t, "scan", t.TempDir(), "--format", "pdf", "--log-level", "error")
	assert.Error(t, err)
}

func TestDBCommandRequiresType(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "db", "--dsn", "user:pw@tcp(localhost:3306)/shop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--type")

	_, err = execute(t, "db", "--type", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dsn")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("dataset-analyzer.yaml", []byte("analysis:\n  max_key_size: 2\n"), 0o644))

	stdout, err := execute(t, "config", "--workers", "6")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# dataset-analyzer.yaml")
	assert.Contains(t, stdout, "max_key_size: 2")
	assert.Contains(t, stdout, "workers: 6")
}
