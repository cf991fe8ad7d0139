// Package config 分层加载配置：默认值 -> YAML 文件 -> 环境变量 -> 命令行参数
package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"dataset-analyzer/internal/adapter"
	"dataset-analyzer/internal/ai"
	"dataset-analyzer/internal/analyzer"
	"dataset-analyzer/internal/logging"
	"dataset-analyzer/internal/renderer"
)

// ErrInvalidConfig 配置不合法
var ErrInvalidConfig = errors.New("invalid config")

// Config 全部配置
type Config struct {
	Analysis analyzer.Config `koanf:"analysis" yaml:"analysis"`
	Input    InputConfig     `koanf:"input" yaml:"input"`
	Output   OutputConfig    `koanf:"output" yaml:"output"`
	Refine   ai.Config       `koanf:"refine" yaml:"refine"`
	Log      LogConfig       `koanf:"log" yaml:"log"`
	Server   ServerConfig    `koanf:"server" yaml:"server"`

	// File 实际读取的配置文件，没有时为空
	File string `koanf:"-" yaml:"-"`
}

// InputConfig 数据来源
type InputConfig struct {
	Kind       string   `koanf:"source" yaml:"source"` // dir | sqlite | mysql | sqlserver | postgres
	Path       string   `koanf:"path" yaml:"path"`     // 目录或 SQLite 文件
	DSN        string   `koanf:"dsn" yaml:"dsn"`
	Schema     string   `koanf:"schema" yaml:"schema"`
	NullTokens []string `koanf:"null_tokens" yaml:"null_tokens"`
	Delimiter  string   `koanf:"delimiter" yaml:"delimiter"` // 空为自动探测，可写 tab
	RowLimit   int      `koanf:"row_limit" yaml:"row_limit"`
}

// OutputConfig 报告输出
type OutputConfig struct {
	Dir     string   `koanf:"dir" yaml:"dir"`
	Formats []string `koanf:"formats" yaml:"formats"`
	Title   string   `koanf:"title" yaml:"title"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// Default 默认配置
func Default() Config {
	return Config{
		Analysis: analyzer.DefaultConfig(),
		Input: InputConfig{
			Kind:       "dir",
			Path:       "data",
			NullTokens: adapter.DefaultOptions().NullTokens,
		},
		Output: OutputConfig{
			Dir:     "output",
			Formats: append([]string(nil), renderer.Formats...),
			Title:   "Dataset Structure Report",
		},
		Refine: ai.DefaultConfig(),
		Log:    LogConfig{Level: "info", Format: logging.FormatConsole},
		Server: ServerConfig{Addr: ":8080"},
	}
}

var sourceKinds = map[string]bool{"dir": true, "sqlite": true, "mysql": true, "sqlserver": true, "postgres": true}

// Validate 检查配置
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}

	if !sourceKinds[c.Input.Kind] {
		return fmt.Errorf("%w: input.source %q (want dir, sqlite, mysql, sqlserver or postgres)", ErrInvalidConfig, c.Input.Kind)
	}
	if c.Input.RowLimit < 0 {
		return fmt.Errorf("%w: input.row_limit must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Input.delimiter(); err != nil {
		return err
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("%w: output.dir is required", ErrInvalidConfig)
	}
	if len(c.Output.Formats) == 0 {
		return fmt.Errorf("%w: output.formats is empty", ErrInvalidConfig)
	}
	for _, f := range c.Output.Formats {
		if _, err := renderer.New(f, renderer.Options{}); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	switch strings.ToLower(c.Refine.Provider) {
	case "", ai.ProviderNone, ai.ProviderDashScope, ai.ProviderOpenAI, ai.ProviderAnthropic:
	default:
		return fmt.Errorf("%w: refine.provider %q", ErrInvalidConfig, c.Refine.Provider)
	}
	if c.Refine.Timeout <= 0 {
		return fmt.Errorf("%w: refine.timeout must be positive", ErrInvalidConfig)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// AdapterSource 转为加载器来源
func (i InputConfig) AdapterSource() adapter.Source {
	return adapter.Source{Kind: i.Kind, Path: i.Path, DSN: i.DSN, Schema: i.Schema}
}

// LoaderOptions 转为加载选项
func (i InputConfig) LoaderOptions() adapter.Options {
	opts := adapter.DefaultOptions()
	if i.NullTokens != nil {
		opts.NullTokens = i.NullTokens
	}
	opts.Delimiter, _ = i.delimiter()
	opts.RowLimit = i.RowLimit
	return opts
}

func (i InputConfig) delimiter() (rune, error) {
	switch i.Delimiter {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(i.Delimiter) != 1 {
		return 0, fmt.Errorf("%w: input.delimiter %q must be a single character", ErrInvalidConfig, i.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(i.Delimiter)
	return r, nil
}

// RendererOptions 转为渲染选项
func (o OutputConfig) RendererOptions() renderer.Options {
	return renderer.Options{Title: o.Title}
}
