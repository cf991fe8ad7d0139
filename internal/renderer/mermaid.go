package renderer

import (
	"fmt"
	"regexp"
	"strings"

	"dataset-analyzer/internal/graph"
)

// MermaidRenderer Mermaid ER 图渲染器
type MermaidRenderer struct{}

// NewMermaidRenderer 创建渲染器
func NewMermaidRenderer() *MermaidRenderer {
	return &MermaidRenderer{}
}

func (m *MermaidRenderer) Format() string   { return FormatMermaid }
func (m *MermaidRenderer) FileName() string { return "er_diagram.mmd" }

var mermaidUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// mermaidName Mermaid 实体名只允许字母数字下划线
func mermaidName(s string) string {
	s = mermaidUnsafe.ReplaceAllString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

// Render 渲染为 Mermaid 格式：数据集、键列与外键边
func (m *MermaidRenderer) Render(model *graph.StructuralModel) (string, error) {
	var sb strings.Builder

	sb.WriteString("erDiagram\n")

	// 列标记：主键 PK，外键源列 FK
	marks := make(map[string]map[string]string)
	mark := func(ds, col, tag string) {
		if marks[ds] == nil {
			marks[ds] = make(map[string]string)
		}
		if cur := marks[ds][col]; cur != "" && cur != tag {
			marks[ds][col] = "PK, FK"
			return
		}
		marks[ds][col] = tag
	}
	for _, ds := range model.Datasets {
		if pk, ok := model.PrimaryKey(ds.Name); ok {
			for _, c := range pk.Columns {
				mark(ds.Name, c, "PK")
			}
		}
	}
	for _, r := range model.Relationships {
		for _, c := range r.SourceColumns {
			mark(r.SourceDataset, c, "FK")
		}
	}

	// 输出表定义，只列出键列
	for _, ds := range model.Datasets {
		if len(marks[ds.Name]) == 0 {
			fmt.Fprintf(&sb, "    %s\n", mermaidName(ds.Name))
			continue
		}
		fmt.Fprintf(&sb, "    %s {\n", mermaidName(ds.Name))
		for _, col := range ds.Columns {
			tag, ok := marks[ds.Name][col]
			if !ok {
				continue
			}
			typ := "text"
			if p, found := model.Profile(ds.Name, col); found {
				typ = string(p.Type)
			}
			fmt.Fprintf(&sb, "        %s %s %s\n", mermaidName(typ), mermaidName(col), tag)
		}
		sb.WriteString("    }\n")
	}

	sb.WriteString("\n")

	// 渲染关系
	for _, r := range model.Relationships {
		relType := "||--o{"
		if r.Cardinality == graph.Cardinality1To1 {
			relType = "||--o|"
		}
		if r.Kind == graph.RelationshipImplicit {
			relType = strings.Replace(relType, "--", "..", 1) // 虚线表示推断关系
		}
		label := fmt.Sprintf("\"%s %.2f\"", strings.Join(r.SourceColumns, ","), r.Confidence)
		fmt.Fprintf(&sb, "    %s %s %s : %s\n",
			mermaidName(r.TargetDataset), relType, mermaidName(r.SourceDataset), label)
	}

	return sb.String(), nil
}
