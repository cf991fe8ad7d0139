package renderer

import (
	"errors"
	"fmt"

	"dataset-analyzer/internal/graph"
)

// ErrUnknownFormat 未知的输出格式
var ErrUnknownFormat = errors.New("unknown output format")

// 输出格式
const (
	FormatMarkdown = "markdown"
	FormatRAG      = "rag"
	FormatCuration = "curation"
	FormatMermaid  = "mermaid"
	FormatJSON     = "json"
)

// Formats 全部支持的格式，按默认输出顺序
var Formats = []string{FormatMarkdown, FormatRAG, FormatCuration, FormatMermaid, FormatJSON}

// Artifact 渲染产物
type Artifact struct {
	Name    string `json:"name"`   // 文件名
	Format  string `json:"format"` // 生成它的格式
	Content string `json:"content"`
}

// Options 渲染选项
type Options struct {
	Title string
}

// Renderer 报告渲染器
type Renderer interface {
	// Format 格式名
	Format() string
	// FileName 产物文件名
	FileName() string
	Render(m *graph.StructuralModel) (string, error)
}

// New 按格式创建渲染器
func New(format string, opts Options) (Renderer, error) {
	if opts.Title == "" {
		opts.Title = "Dataset Structure Report"
	}
	switch format {
	case FormatMarkdown:
		return NewMarkdownRenderer(opts), nil
	case FormatRAG:
		return NewRAGRenderer(opts), nil
	case FormatCuration:
		return NewCurationRenderer(opts), nil
	case FormatMermaid:
		return NewMermaidRenderer(), nil
	case FormatJSON:
		return NewJSONRenderer(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// RenderAll 依次渲染多个格式
func RenderAll(m *graph.StructuralModel, formats []string, opts Options) ([]Artifact, error) {
	out := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		r, err := New(f, opts)
		if err != nil {
			return nil, err
		}
		content, err := r.Render(m)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", f, err)
		}
		out = append(out, Artifact{Name: r.FileName(), Format: r.Format(), Content: content})
	}
	return out, nil
}
