package renderer

import (
	"strings"

	"dataset-analyzer/internal/graph"
)

type indexRecommendation struct {
	dataset string
	columns []string
	reason  string
}

// recommendIndexes 主键、外键源列、常用过滤列；同一列集合只保留第一条理由
func recommendIndexes(m *graph.StructuralModel) []indexRecommendation {
	var out []indexRecommendation
	seen := make(map[string]bool)
	add := func(ds string, cols []string, reason string) {
		key := ds + "\x00" + strings.Join(cols, "\x1e")
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, indexRecommendation{dataset: ds, columns: cols, reason: reason})
	}

	for _, ds := range m.Datasets {
		if pk, ok := m.PrimaryKey(ds.Name); ok {
			add(ds.Name, pk.Columns, "primary key")
		}
	}
	for _, r := range m.Relationships {
		add(r.SourceDataset, r.SourceColumns, "foreign key to "+r.TargetDataset)
	}
	for _, w := range m.Workflows {
		add(w.Dataset, []string{w.StatusColumn}, "workflow status filter")
	}
	for _, b := range m.BusinessFields {
		if len(b.Domain) > 0 {
			add(b.Dataset, []string{b.Column}, "filter on closed domain")
		}
	}
	for _, t := range m.TemporalRules {
		add(t.Dataset, []string{t.ColumnA}, "date range filter")
	}
	return out
}
