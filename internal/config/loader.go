package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，层级用双下划线分隔：DATASET_ANALYZER_ANALYSIS__MAX_KEY_SIZE
const EnvPrefix = "DATASET_ANALYZER_"

// DefaultFiles 未指定配置文件时在当前目录查找
var DefaultFiles = []string{"dataset-analyzer.yaml", "dataset-analyzer.yml"}

// flagKeys 命令行参数到配置键的映射，未列出的参数不参与配置
var flagKeys = map[string]string{
	"source":       "input.source",
	"path":         "input.path",
	"dsn":          "input.dsn",
	"schema":       "input.schema",
	"null-tokens":  "input.null_tokens",
	"delimiter":    "input.delimiter",
	"row-limit":    "input.row_limit",
	"output":       "output.dir",
	"format":       "output.formats",
	"title":        "output.title",
	"type":         "input.source",
	"refine":       "refine.provider",
	"model":        "refine.model",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"workers":      "analysis.workers",
	"max-key-size": "analysis.max_key_size",
	"addr":         "server.addr",
}

// findConfigFile 优先使用显式路径
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load 加载配置，优先级：命令行 > 环境变量 > 配置文件 > 默认值
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. 默认值
	defaults, err := defaultsMap()
	if err != nil {
		return nil, err
	}
	if err := k.Load(confmap.Provider(defaults, ""), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. 配置文件
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. 环境变量
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. 显式设置的命令行参数
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	return &cfg, nil
}

// envKey DATASET_ANALYZER_OUTPUT__DIR -> output.dir
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// defaultsMap 默认配置的嵌套 map，键与 YAML 字段名一致
func defaultsMap() (map[string]interface{}, error) {
	raw, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	out := make(map[string]interface{})
	if err := yamlv3.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	return out, nil
}

// YAML 输出生效配置
func (c *Config) YAML() (string, error) {
	raw, err := yamlv3.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
