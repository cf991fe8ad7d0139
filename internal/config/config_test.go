package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/renderer"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset-analyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	want := Default()
	assert.Equal(t, want.Analysis, cfg.Analysis)
	assert.Equal(t, "dir", cfg.Input.Kind)
	assert.Equal(t, renderer.Formats, cfg.Output.Formats)
	assert.Equal(t, "none", cfg.Refine.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Refine.Timeout)
	assert.Empty(t, cfg.File)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
analysis:
  max_key_size: 2
  implicit_threshold: 0.97
input:
  path: ./exports
  delimiter: ";"
output:
  dir: reports
  formats: [markdown, json]
log:
  level: debug
`)
	t.Setenv("DATASET_ANALYZER_OUTPUT__DIR", "env-reports")
	t.Setenv("DATASET_ANALYZER_ANALYSIS__WORKERS", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "output", "")
	flags.Int("max-key-size", 3, "")
	flags.String("config", "", "")
	require.NoError(t, flags.Parse([]string{"--max-key-size=4", "--config=ignored.yaml"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 4, cfg.Analysis.MaxKeySize, "flag beats file")
	assert.Equal(t, 8, cfg.Analysis.Workers, "env beats default")
	assert.Equal(t, "env-reports", cfg.Output.Dir, "env beats file, unset flag is ignored")
	assert.InDelta(t, 0.97, cfg.Analysis.ImplicitThreshold, 1e-9)
	assert.Equal(t, 0.95, cfg.Analysis.ExplicitThreshold, "untouched keys keep defaults")
	assert.Equal(t, []string{"markdown", "json"}, cfg.Output.Formats)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ';', cfg.Input.LoaderOptions().Delimiter)
	assert.Equal(t, "./exports", cfg.Input.AdapterSource().Path)
}

func TestLoadBadFile(t *testing.T) {
	path := writeConfig(t, "analysis: [unclosed")
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ratio out of range", func(c *Config) { c.Analysis.ImplicitThreshold = 1.2 }},
		{"zero cap", func(c *Config) { c.Analysis.MaxKeyCombinations = 0 }},
		{"unknown source", func(c *Config) { c.Input.Kind = "oracle" }},
		{"negative row limit", func(c *Config) { c.Input.RowLimit = -1 }},
		{"long delimiter", func(c *Config) { c.Input.Delimiter = ";;" }},
		{"unknown format", func(c *Config) { c.Output.Formats = []string{"pdf"} }},
		{"no formats", func(c *Config) { c.Output.Formats = nil }},
		{"unknown provider", func(c *Config) { c.Refine.Provider = "gemini" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Input.Delimiter = "tab"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, '\t', cfg.Input.LoaderOptions().Delimiter)
}

func TestYAML(t *testing.T) {
	cfg := Default()
	cfg.Refine.APIKey = "secret"
	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "max_key_size: 3")
	assert.Contains(t, out, "provider: none")
	assert.NotContains(t, out, "secret")
}
