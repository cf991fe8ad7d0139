package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const dashScopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// DashScopeRefiner 阿里云通义千问
type DashScopeRefiner struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDashScopeRefiner 创建通义千问润色服务
func NewDashScopeRefiner(apiKey string, cfg Config, logger *zap.Logger) *DashScopeRefiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &DashScopeRefiner{
		apiKey:     apiKey,
		endpoint:   dashScopeEndpoint,
		model:      "qwen-plus", // 或 qwen-turbo, qwen-max
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("dashscope"),
	}
	if cfg.Endpoint != "" {
		r.endpoint = cfg.Endpoint
	}
	if cfg.Model != "" {
		r.model = cfg.Model
	}
	return r
}

func (c *DashScopeRefiner) Name() string { return ProviderDashScope }

// Refine 润色报告
func (c *DashScopeRefiner) Refine(ctx context.Context, text string) (string, error) {
	start := time.Now()
	out, err := c.callAPI(ctx, userPrompt(text))
	if err != nil {
		c.logger.Error("DashScope request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", err
	}
	c.logger.Info("DashScope request completed",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(text)),
		zap.Int("response_len", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// callAPI 调用阿里云 API
func (c *DashScopeRefiner) callAPI(ctx context.Context, prompt string) (string, error) {
	parameters := map[string]interface{}{
		"result_format": "message",
	}
	if c.maxTokens > 0 {
		parameters["max_tokens"] = c.maxTokens
	}
	requestBody := map[string]interface{}{
		"model": c.model,
		"input": map[string]interface{}{
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": prompt},
			},
		},
		"parameters": parameters,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dashscope request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dashscope: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// 解析响应
	var apiResp struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("decode dashscope response: %w", err)
	}
	if len(apiResp.Output.Choices) == 0 || strings.TrimSpace(apiResp.Output.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return apiResp.Output.Choices[0].Message.Content, nil
}
