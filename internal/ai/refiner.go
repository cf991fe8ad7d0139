package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 支持的服务商
const (
	ProviderNone      = "none"
	ProviderDashScope = "dashscope"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var (
	// ErrUnknownProvider 未知服务商
	ErrUnknownProvider = errors.New("unknown refine provider")
	// ErrEmptyResponse 模型没有返回文本
	ErrEmptyResponse = errors.New("empty model response")
)

// Refiner 报告润色能力
type Refiner interface {
	// Refine 返回改写后的报告文本
	Refine(ctx context.Context, text string) (string, error)
	// Name 服务商名称
	Name() string
}

// Config 润色服务配置
type Config struct {
	Provider  string        `koanf:"provider" yaml:"provider"`
	Model     string        `koanf:"model" yaml:"model"`
	Endpoint  string        `koanf:"endpoint" yaml:"endpoint"`
	APIKeyEnv string        `koanf:"api_key_env" yaml:"api_key_env"` // 存放密钥的环境变量名
	APIKey    string        `koanf:"api_key" yaml:"-"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
	MaxTokens int           `koanf:"max_tokens" yaml:"max_tokens"`
}

// DefaultConfig 默认关闭润色
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderNone,
		Timeout:   2 * time.Minute,
		MaxTokens: 4096,
	}
}

// defaultKeyEnv 各服务商惯用的密钥环境变量
var defaultKeyEnv = map[string]string{
	ProviderDashScope: "DASHSCOPE_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// apiKey 显式配置优先，其次读取环境变量
func (c Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	env := c.APIKeyEnv
	if env == "" {
		env = defaultKeyEnv[c.provider()]
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

func (c Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderNone
	}
	return p
}

// NewRefiner 按配置创建润色服务；关闭或缺少密钥时返回 NopRefiner
func NewRefiner(cfg Config, logger *zap.Logger) (Refiner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.provider()
	if provider == ProviderNone {
		return NopRefiner{}, nil
	}
	if _, ok := defaultKeyEnv[provider]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	key := cfg.apiKey()
	if key == "" {
		logger.Warn("refine provider has no API key, refinement disabled",
			zap.String("provider", provider))
		return NopRefiner{}, nil
	}

	switch provider {
	case ProviderDashScope:
		return NewDashScopeRefiner(key, cfg, logger), nil
	case ProviderOpenAI:
		return NewOpenAIRefiner(key, cfg, logger), nil
	default:
		return NewAnthropicRefiner(key, cfg, logger), nil
	}
}

// NopRefiner 不做任何改写
type NopRefiner struct{}

func (NopRefiner) Refine(_ context.Context, text string) (string, error) { return text, nil }
func (NopRefiner) Name() string                                           { return ProviderNone }

const systemPrompt = "You are a senior data architect. You receive a structural report generated " +
	"from tabular datasets. Rewrite it for business readers: open with a short executive summary of " +
	"the main entities, their relationships and the business rules, then keep the original sections. " +
	"Never change dataset names, column names, numbers, percentages or confidence values, and never " +
	"invent relationships or rules that are not in the report. Answer in Markdown only."

func userPrompt(text string) string {
	return "Structural report:\n\n" + text
}
