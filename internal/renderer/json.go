package renderer

import (
	"encoding/json"

	"dataset-analyzer/internal/graph"
)

// JSONRenderer 输出模型的普通映射结构
type JSONRenderer struct{}

// NewJSONRenderer 创建渲染器
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) Format() string   { return FormatJSON }
func (r *JSONRenderer) FileName() string { return "model.json" }

// Render 渲染为缩进 JSON
func (r *JSONRenderer) Render(m *graph.StructuralModel) (string, error) {
	plain, err := m.ToMap()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(plain, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
