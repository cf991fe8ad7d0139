package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dataset-analyzer/internal/renderer"
)

func TestNewRefinerSelection(t *testing.T) {
	t.Setenv("DATASET_ANALYZER_TEST_KEY", "secret")

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"disabled", Config{Provider: "none"}, ProviderNone},
		{"empty provider", Config{}, ProviderNone},
		{"missing key", Config{Provider: "openai", APIKeyEnv: "DATASET_ANALYZER_UNSET_KEY"}, ProviderNone},
		{"dashscope", Config{Provider: "DashScope", APIKeyEnv: "DATASET_ANALYZER_TEST_KEY"}, ProviderDashScope},
		{"openai", Config{Provider: "openai", APIKey: "k"}, ProviderOpenAI},
		{"anthropic", Config{Provider: "anthropic", APIKeyEnv: "DATASET_ANALYZER_TEST_KEY"}, ProviderAnthropic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRefiner(tt.cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Name())
		})
	}

	_, err := NewRefiner(Config{Provider: "gemini", APIKey: "k"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestDashScopeRefine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Model string `json:"model"`
			Input struct {
				Messages []map[string]string `json:"messages"`
			} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen-max", body.Model)
		require.Len(t, body.Input.Messages, 2)
		assert.Contains(t, body.Input.Messages[1]["content"], "# Report")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"choices":[{"message":{"role":"assistant","content":"# Refined"}}]}}`))
	}))
	defer srv.Close()

	r := NewDashScopeRefiner("secret", Config{Endpoint: srv.URL, Model: "qwen-max", Timeout: 5 * time.Second}, nil)
	out, err := r.Refine(context.Background(), "# Report")
	require.NoError(t, err)
	assert.Equal(t, "# Refined", out)
}

func TestDashScopeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("empty") != "" {
			_, _ = w.Write([]byte(`{"output":{"choices":[]}}`))
			return
		}
		http.Error(w, `{"code":"InvalidApiKey"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewDashScopeRefiner("bad", Config{Endpoint: srv.URL}, nil).Refine(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = NewDashScopeRefiner("k", Config{Endpoint: srv.URL + "?empty=1"}, nil).Refine(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIRefine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"refined"},"finish_reason":"stop"}],` +
			`"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	r := NewOpenAIRefiner("k", Config{Endpoint: srv.URL + "/", Model: "m", Timeout: 5 * time.Second}, nil)
	out, err := r.Refine(context.Background(), "report")
	require.NoError(t, err)
	assert.Equal(t, "refined", out)
}

func TestAnthropicRefine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude",` +
			`"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	r := NewAnthropicRefiner("k", Config{Endpoint: srv.URL, Timeout: 5 * time.Second}, nil)
	out, err := r.Refine(context.Background(), "report")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", out)
}

type fakeRefiner struct {
	got string
	err error
}

func (f *fakeRefiner) Refine(_ context.Context, text string) (string, error) {
	f.got = text
	if f.err != nil {
		return "", f.err
	}
	return "refined: " + text, nil
}

func (f *fakeRefiner) Name() string { return "fake" }

func sampleArtifacts() []renderer.Artifact {
	return []renderer.Artifact{
		{Name: "report.md", Format: renderer.FormatMarkdown, Content: "# Report"},
		{Name: "report_rag.md", Format: renderer.FormatRAG, Content: "# RAG"},
		{Name: "model.json", Format: renderer.FormatJSON, Content: "{}"},
	}
}

func TestStageAppendsRefinedReport(t *testing.T) {
	f := &fakeRefiner{}
	in := sampleArtifacts()
	out := NewStage(f, nil).Apply(context.Background(), in)

	assert.Equal(t, "# Report", f.got, "only the human report is sent")
	require.Len(t, out, 4)
	assert.Equal(t, in, out[:3], "existing artifacts are untouched")
	assert.Equal(t, RefinedFileName, out[3].Name)
	assert.Equal(t, "refined: # Report", out[3].Content)
}

func TestStageFailureKeepsArtifacts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	in := sampleArtifacts()
	out := NewStage(&fakeRefiner{err: errors.New("quota exceeded")}, zap.New(core)).Apply(context.Background(), in)
	assert.Equal(t, in, out)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "fake", warnings[0].ContextMap()["provider"])
}

func TestStageDisabled(t *testing.T) {
	s := NewStage(nil, nil)
	assert.False(t, s.Enabled())
	in := sampleArtifacts()
	assert.Equal(t, in, s.Apply(context.Background(), in))

	// 没有 markdown 报告时不调用模型
	f := &fakeRefiner{}
	out := NewStage(f, nil).Apply(context.Background(), in[1:])
	assert.Len(t, out, 2)
	assert.Empty(t, f.got)
}
