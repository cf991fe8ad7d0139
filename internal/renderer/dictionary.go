package renderer

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"dataset-analyzer/internal/graph"
)

// 列标记
const (
	markKey      = "🔑"
	markForeign  = "🔗"
	markDerived  = "🧮"
	markBusiness = "📌"
	markDead     = "💀"
)

// columnMarks 每列在结论中扮演的角色
func columnMarks(m *graph.StructuralModel) map[string]map[string][]string {
	marks := make(map[string]map[string][]string)
	add := func(ds, col, mark string) {
		if marks[ds] == nil {
			marks[ds] = make(map[string][]string)
		}
		for _, existing := range marks[ds][col] {
			if existing == mark {
				return
			}
		}
		marks[ds][col] = append(marks[ds][col], mark)
	}
	for _, k := range m.Keys {
		if k.Primary {
			for _, c := range k.Columns {
				add(k.Dataset, c, markKey)
			}
		}
	}
	for _, r := range m.Relationships {
		for _, c := range r.SourceColumns {
			add(r.SourceDataset, c, markForeign)
		}
	}
	for _, d := range m.DerivedFields {
		add(d.Dataset, d.Target, markDerived)
	}
	for _, b := range m.BusinessFields {
		add(b.Dataset, b.Column, markBusiness)
	}
	for _, d := range m.DeadColumns {
		add(d.Dataset, d.Column, markDead)
	}
	return marks
}

// dictionary 数据字典：每个数据集一张列画像表
func (r *report) dictionary() {
	m := r.model
	r.heading(2, "Data dictionary")
	marks := columnMarks(m)

	for _, ds := range m.Datasets {
		r.heading(3, ds.Name)
		var entries []entry
		for _, p := range m.ProfilesFor(ds.Name) {
			mk := strings.Join(marks[ds.Name][p.Column], " ")
			sampled := ""
			if p.Sampled {
				sampled = fmt.Sprintf(" (sampled %d)", p.SampleSize)
			}
			entries = append(entries, entry{
				kind: "profile",
				id:   p.ID,
				row: table.Row{
					p.Column, string(p.Type), p.Category, string(p.Pattern),
					pct(p.NullRatio()), p.DistinctCount, string(p.Cardinality),
					fmt.Sprintf("%.2f", p.Entropy), valueRange(p), strings.Join(p.Samples, ", "), mk,
				},
				text: fmt.Sprintf("Column `%s.%s`: %s (%s%s), %s null, %d distinct values%s, entropy %.2f, range %s. Samples: %s.",
					ds.Name, p.Column, p.Type, p.Category, patternSuffix(p.Pattern), pct(p.NullRatio()),
					p.DistinctCount, sampled, p.Entropy, valueRange(p), orNone(p.Samples)),
			})
		}
		r.emit(table.Row{"Column", "Type", "Category", "Pattern", "Null", "Distinct", "Cardinality", "Entropy", "Range", "Samples", "Marks"}, entries)
	}

	if !r.anchors && len(m.Datasets) > 0 {
		// 图例说明
		r.sb.WriteString("Legend: ")
		fmt.Fprintf(&r.sb, "%s primary key, %s foreign key, %s derived, %s business field, %s dead column.\n\n",
			markKey, markForeign, markDerived, markBusiness, markDead)
	}
}

func valueRange(p graph.ColumnProfile) string {
	if p.Min.IsNull() && p.Max.IsNull() {
		return "-"
	}
	return p.Min.String() + " .. " + p.Max.String()
}

func patternSuffix(p graph.PatternTag) string {
	if p == graph.PatternNone {
		return ""
	}
	return ", " + string(p)
}
