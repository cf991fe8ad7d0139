package renderer

import (
	"fmt"
	"strings"

	"dataset-analyzer/internal/graph"
)

// CurationRenderer 需要人工确认的事项清单
type CurationRenderer struct {
	opts Options
}

// NewCurationRenderer 创建渲染器
func NewCurationRenderer(opts Options) *CurationRenderer {
	return &CurationRenderer{opts: opts}
}

func (c *CurationRenderer) Format() string   { return FormatCuration }
func (c *CurationRenderer) FileName() string { return "curation.md" }

// checklist 清单分组
type checklist struct {
	sb    strings.Builder
	total int
}

func (c *checklist) section(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(&c.sb, "## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(&c.sb, "- [ ] %s\n", it)
	}
	c.sb.WriteString("\n")
	c.total += len(items)
}

// Render 渲染清单：推断外键、未完全成立的规则、死列、截断的搜索、未达阈值的候选与告警
func (c *CurationRenderer) Render(m *graph.StructuralModel) (string, error) {
	var cl checklist

	var items []string
	for _, r := range m.Relationships {
		if r.Kind == graph.RelationshipImplicit {
			items = append(items, fmt.Sprintf("Confirm implicit relationship %s → %s (containment %s, confidence %.2f)",
				qualified(r.SourceDataset, r.SourceColumns), qualified(r.TargetDataset, r.TargetColumns), pct(r.Containment), r.Confidence))
		}
	}
	cl.section("Implicit relationships", items)

	items = nil
	for _, k := range m.Keys {
		if k.Tie {
			items = append(items, fmt.Sprintf("Choose the key of `%s`: %s ties with other candidates", k.Dataset, strings.Join(k.Columns, ", ")))
		}
	}
	cl.section("Key decisions", items)

	items = nil
	for _, t := range m.TemporalRules {
		if t.Violations > 0 {
			items = append(items, fmt.Sprintf("`%s`: %s %s %s holds in %s, review %d violating rows",
				t.Dataset, t.ColumnA, t.Operator, t.ColumnB, pct(t.Compliance), t.Violations))
		}
	}
	for _, d := range m.MultivariateRules {
		if d.Confidence < 1 {
			items = append(items, fmt.Sprintf("`%s`: %s -> %s holds in %s of groups",
				d.Dataset, strings.Join(d.Determinant, ", "), d.Dependent, pct(d.Confidence)))
		}
	}
	for _, r := range m.ConditionalRules {
		if r.ViolationRatio > 0 {
			items = append(items, fmt.Sprintf("`%s`: when %s = %s, %s is empty in %s of rows",
				r.Dataset, r.Condition, r.ConditionValue, r.Target, pct(r.ViolationRatio)))
		}
	}
	for _, d := range m.DerivedFields {
		if d.MatchRatio < 1 {
			items = append(items, fmt.Sprintf("`%s`: %s = %s matches %s of rows",
				d.Dataset, d.Target, derivedExpression(d), pct(d.MatchRatio)))
		}
	}
	cl.section("Rules with exceptions", items)

	items = nil
	for _, d := range m.DeadColumns {
		items = append(items, fmt.Sprintf("Drop or document %s (%s)", qualified(d.Dataset, []string{d.Column}), d.Reason))
	}
	cl.section("Dead columns", items)

	items = nil
	for _, s := range m.Searches {
		if s.Truncated {
			items = append(items, fmt.Sprintf("`%s` %s search stopped after %d of budget %d (max size %d); results may be incomplete",
				s.Dataset, s.Stage, s.Evaluated, s.Budget, s.MaxSize))
		}
	}
	for _, d := range m.DerivedFields {
		if d.Truncated {
			items = append(items, fmt.Sprintf("`%s` derived field check for %s was truncated", d.Dataset, d.Target))
		}
	}
	cl.section("Truncated searches", items)

	items = nil
	for _, n := range m.Notes {
		if n.Reason != graph.NoteThresholdNotMet {
			continue
		}
		items = append(items, fmt.Sprintf("`%s` %s %s: %s", n.Dataset, n.Stage, n.Subject, n.Detail))
	}
	cl.section("Near misses", items)

	items = nil
	for _, w := range m.Warnings {
		items = append(items, fmt.Sprintf("[%s] %s %s", w.Stage, dash(w.Dataset), w.Message))
	}
	cl.section("Warnings", items)

	var out strings.Builder
	fmt.Fprintf(&out, "# %s: curation checklist\n\n", c.opts.Title)
	if cl.total == 0 {
		out.WriteString("Nothing needs a human decision.\n")
		return out.String(), nil
	}
	fmt.Fprintf(&out, "%d items need a human decision.\n\n", cl.total)
	out.WriteString(cl.sb.String())
	return out.String(), nil
}
