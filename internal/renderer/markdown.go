package renderer

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"dataset-analyzer/internal/graph"
)

// MarkdownRenderer 面向人的结构报告
type MarkdownRenderer struct {
	opts Options
}

// NewMarkdownRenderer 创建渲染器
func NewMarkdownRenderer(opts Options) *MarkdownRenderer {
	return &MarkdownRenderer{opts: opts}
}

func (m *MarkdownRenderer) Format() string   { return FormatMarkdown }
func (m *MarkdownRenderer) FileName() string { return "report.md" }

// Render 渲染为 Markdown 格式
func (m *MarkdownRenderer) Render(model *graph.StructuralModel) (string, error) {
	r := &report{model: model}
	r.write(m.opts.Title)
	return r.sb.String(), nil
}

// RAGRenderer 带检索锚点的报告，每条结论前有 <!-- @rag:kind:id -->
type RAGRenderer struct {
	opts Options
}

// NewRAGRenderer 创建渲染器
func NewRAGRenderer(opts Options) *RAGRenderer {
	return &RAGRenderer{opts: opts}
}

func (m *RAGRenderer) Format() string   { return FormatRAG }
func (m *RAGRenderer) FileName() string { return "report_rag.md" }

// Render 渲染为带锚点的 Markdown
func (m *RAGRenderer) Render(model *graph.StructuralModel) (string, error) {
	r := &report{model: model, anchors: true}
	r.write(m.opts.Title + " (RAG)")
	return r.sb.String(), nil
}

// entry 一条结论：表格模式输出 row，锚点模式输出 text
type entry struct {
	kind string
	id   string
	row  table.Row
	text string
}

// report 两种 Markdown 报告共用的写入器
type report struct {
	sb      strings.Builder
	model   *graph.StructuralModel
	anchors bool
}

func (r *report) heading(level int, title string) {
	fmt.Fprintf(&r.sb, "%s %s\n\n", strings.Repeat("#", level), title)
}

// emit 输出一组结论
func (r *report) emit(header table.Row, entries []entry) {
	if len(entries) == 0 {
		r.sb.WriteString("_None detected._\n\n")
		return
	}
	if r.anchors {
		for _, e := range entries {
			fmt.Fprintf(&r.sb, "<!-- @rag:%s:%s -->\n- %s\n", e.kind, e.id, e.text)
		}
		r.sb.WriteString("\n")
		return
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	for _, e := range entries {
		t.AppendRow(e.row)
	}
	r.sb.WriteString(t.RenderMarkdown())
	r.sb.WriteString("\n\n")
}

func (r *report) write(title string) {
	r.heading(1, title)
	r.overview()
	r.datasets()
	r.keys()
	r.businessRules()
	r.relationalFlow()
	r.indexes()
	r.derivedFields()
	r.dimensions()
	r.workflows()
	r.deadColumns()
	r.dictionary()
	r.warnings()
}

func (r *report) overview() {
	m := r.model
	rows := 0
	for _, ds := range m.Datasets {
		rows += ds.RowCount
	}
	fmt.Fprintf(&r.sb, "%d datasets, %d rows in total. ", len(m.Datasets), rows)
	fmt.Fprintf(&r.sb, "%d keys, %d relationships, %d rules, %d derived fields, %d dead columns.\n\n",
		len(m.Keys), len(m.Relationships),
		len(m.TemporalRules)+len(m.ConditionalRules)+len(m.MultivariateRules),
		len(m.DerivedFields), len(m.DeadColumns))
}

func (r *report) datasets() {
	r.heading(2, "Datasets")
	var entries []entry
	for _, ds := range r.model.Datasets {
		pk := "-"
		if k, ok := r.model.PrimaryKey(ds.Name); ok {
			pk = strings.Join(k.Columns, ", ")
		}
		entries = append(entries, entry{
			kind: "dataset",
			id:   graph.FindingID("dataset", ds.Name),
			row:  table.Row{ds.Name, ds.Source, ds.RowCount, len(ds.Columns), pk},
			text: fmt.Sprintf("Dataset `%s` has %d rows and %d columns (%s); primary key: %s.",
				ds.Name, ds.RowCount, len(ds.Columns), strings.Join(ds.Columns, ", "), pk),
		})
	}
	r.emit(table.Row{"Dataset", "Source", "Rows", "Columns", "Primary key"}, entries)
}

func (r *report) keys() {
	r.heading(2, "Keys")
	var entries []entry
	for _, k := range r.model.Keys {
		flags := keyFlags(k)
		entries = append(entries, entry{
			kind: "key",
			id:   k.ID,
			row:  table.Row{k.Dataset, strings.Join(k.Columns, ", "), pct(k.Uniqueness), strings.Join(flags, ", ")},
			text: fmt.Sprintf("Key candidate %s: uniqueness %s (%s).",
				qualified(k.Dataset, k.Columns), pct(k.Uniqueness), strings.Join(flags, ", ")),
		})
	}
	r.emit(table.Row{"Dataset", "Columns", "Uniqueness", "Flags"}, entries)
}

func keyFlags(k graph.KeyCandidate) []string {
	var flags []string
	if k.Primary {
		flags = append(flags, "primary")
	}
	if k.Composite() {
		flags = append(flags, "composite")
	}
	if k.Declared {
		flags = append(flags, "declared")
	}
	if k.Tie {
		flags = append(flags, "tie")
	}
	if k.Truncated {
		flags = append(flags, "search truncated")
	}
	if k.Partial {
		flags = append(flags, "below uniqueness threshold")
	}
	if len(flags) == 0 {
		flags = append(flags, "candidate")
	}
	return flags
}

func (r *report) businessRules() {
	m := r.model
	r.heading(2, "Business rules")

	r.heading(3, "Domain fields")
	var entries []entry
	for _, b := range m.BusinessFields {
		domain := strings.Join(b.Domain, ", ")
		entries = append(entries, entry{
			kind: "business_field",
			id:   b.ID,
			row:  table.Row{b.Dataset + "." + b.Column, fmt.Sprintf("%.2f", b.Score), domain, strings.Join(b.Reasons, "; ")},
			text: fmt.Sprintf("Business field %s (score %.2f): %s.%s",
				qualified(b.Dataset, []string{b.Column}), b.Score, strings.Join(b.Reasons, "; "), domainSuffix(domain)),
		})
	}
	r.emit(table.Row{"Field", "Score", "Domain", "Reasons"}, entries)

	r.heading(3, "Temporal rules")
	entries = nil
	for _, t := range m.TemporalRules {
		rule := fmt.Sprintf("%s %s %s", t.ColumnA, t.Operator, t.ColumnB)
		entries = append(entries, entry{
			kind: "temporal_rule",
			id:   t.ID,
			row:  table.Row{t.Dataset, rule, pct(t.Compliance), t.Violations, t.Paired},
			text: fmt.Sprintf("In `%s`, %s holds for %s of %d paired rows (%d violations)%s.",
				t.Dataset, rule, pct(t.Compliance), t.Paired, t.Violations, nameSupport(t.NameSupported)),
		})
	}
	r.emit(table.Row{"Dataset", "Rule", "Compliance", "Violations", "Paired rows"}, entries)

	r.heading(3, "Conditional rules")
	entries = nil
	for _, c := range m.ConditionalRules {
		rule := fmt.Sprintf("if %s = %s then %s is filled", c.Condition, c.ConditionValue, c.Target)
		entries = append(entries, entry{
			kind: "conditional_rule",
			id:   c.ID,
			row:  table.Row{c.Dataset, rule, c.Support, pct(c.ViolationRatio)},
			text: fmt.Sprintf("In `%s`, %s (support %d rows, %s violations).",
				c.Dataset, rule, c.Support, pct(c.ViolationRatio)),
		})
	}
	r.emit(table.Row{"Dataset", "Rule", "Support", "Violations"}, entries)

	r.heading(3, "Functional dependencies")
	entries = nil
	for _, d := range m.MultivariateRules {
		rule := fmt.Sprintf("%s -> %s", strings.Join(d.Determinant, ", "), d.Dependent)
		entries = append(entries, entry{
			kind: "multivariate_rule",
			id:   d.ID,
			row:  table.Row{d.Dataset, rule, pct(d.Confidence), d.Groups},
			text: fmt.Sprintf("In `%s`, %s holds in %s of %d groups.", d.Dataset, rule, pct(d.Confidence), d.Groups),
		})
	}
	r.emit(table.Row{"Dataset", "Dependency", "Confidence", "Groups"}, entries)
}

func (r *report) relationalFlow() {
	r.heading(2, "Relational flow")
	var entries []entry
	for _, rel := range r.model.Relationships {
		kind := string(rel.Kind)
		if rel.Declared {
			kind += " (declared)"
		}
		from := qualified(rel.SourceDataset, rel.SourceColumns)
		to := qualified(rel.TargetDataset, rel.TargetColumns)
		entries = append(entries, entry{
			kind: "relationship",
			id:   rel.ID,
			row:  table.Row{from, to, kind, rel.Cardinality, pct(rel.Containment), fmt.Sprintf("%.2f", rel.Confidence)},
			text: fmt.Sprintf("%s relationship %s → %s (%s, confidence %.2f). Evidence: %s.",
				kind, from, to, rel.Cardinality, rel.Confidence, evidenceSummary(rel.Evidence)),
		})
	}
	r.emit(table.Row{"From", "To", "Kind", "Cardinality", "Containment", "Confidence"}, entries)
}

func evidenceSummary(evs []graph.Evidence) string {
	parts := make([]string, 0, len(evs))
	for _, ev := range evs {
		part := fmt.Sprintf("%s %.2f", ev.Type, ev.Score)
		if ev.Details != "" {
			part += " [" + ev.Details + "]"
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "; ")
}

func (r *report) indexes() {
	r.heading(2, "Recommended indexes")
	var entries []entry
	for _, idx := range recommendIndexes(r.model) {
		entries = append(entries, entry{
			kind: "index",
			id:   graph.FindingID("index", idx.dataset, idx.columns...),
			row:  table.Row{idx.dataset, strings.Join(idx.columns, ", "), idx.reason},
			text: fmt.Sprintf("Index %s: %s.", qualified(idx.dataset, idx.columns), idx.reason),
		})
	}
	r.emit(table.Row{"Dataset", "Columns", "Reason"}, entries)
}

func (r *report) derivedFields() {
	r.heading(2, "Derived fields")
	var entries []entry
	for _, d := range r.model.DerivedFields {
		expr := derivedExpression(d)
		entries = append(entries, entry{
			kind: "derived_field",
			id:   d.ID,
			row:  table.Row{d.Dataset, d.Target, expr, pct(d.MatchRatio), d.Rows},
			text: fmt.Sprintf("In `%s`, %s = %s in %s of %d rows.", d.Dataset, d.Target, expr, pct(d.MatchRatio), d.Rows),
		})
	}
	r.emit(table.Row{"Dataset", "Field", "Expression", "Match", "Rows"}, entries)
}

// derivedExpression 派生关系的可读表达式
func derivedExpression(d graph.DerivedFieldCandidate) string {
	switch d.Operation {
	case graph.OpSum:
		return strings.Join(d.Operands, " + ")
	case graph.OpProduct:
		return strings.Join(d.Operands, " * ")
	case graph.OpConcatenation:
		return strings.Join(d.Operands, fmt.Sprintf(" || %q || ", d.Separator))
	}
	if len(d.Operands) != 2 {
		return fmt.Sprintf("%s(%s)", d.Operation, strings.Join(d.Operands, ", "))
	}
	a, b := d.Operands[0], d.Operands[1]
	switch d.Operation {
	case graph.OpDifference:
		return a + " - " + b
	case graph.OpRatio:
		return a + " / " + b
	case graph.OpDateDifference:
		return fmt.Sprintf("days(%s - %s)", a, b)
	}
	return fmt.Sprintf("%s(%s, %s)", d.Operation, a, b)
}

func (r *report) dimensions() {
	m := r.model
	r.heading(2, "Dimensions and lookup tables")

	r.heading(3, "Dimension candidates")
	var entries []entry
	for _, d := range m.Dimensions {
		entries = append(entries, entry{
			kind: "dimension",
			id:   d.ID,
			row: table.Row{d.Dataset + "." + d.Column, fmt.Sprintf("%.2f", d.Score),
				fmt.Sprintf("%.2f", d.CardinalityScore), fmt.Sprintf("%.2f", d.ReuseScore), strings.Join(d.ReferencedBy, ", ")},
			text: fmt.Sprintf("Dimension candidate %s: score %.2f (cardinality %.2f, reuse %.2f).",
				qualified(d.Dataset, []string{d.Column}), d.Score, d.CardinalityScore, d.ReuseScore),
		})
	}
	r.emit(table.Row{"Column", "Score", "Cardinality", "Reuse", "Referenced by"}, entries)

	r.heading(3, "Lookup tables")
	entries = nil
	for _, l := range m.LookupTables {
		label := l.LabelColumn
		if label == "" {
			label = "-"
		}
		entries = append(entries, entry{
			kind: "lookup_table",
			id:   l.ID,
			row:  table.Row{l.Dataset, l.KeyColumn, label, l.RowCount, fmt.Sprintf("%.2f", l.Confidence), strings.Join(l.ReferencedBy, ", ")},
			text: fmt.Sprintf("Lookup table `%s` (key %s, label %s, %d rows, confidence %.2f) referenced by %s.",
				l.Dataset, l.KeyColumn, label, l.RowCount, l.Confidence, orNone(l.ReferencedBy)),
		})
	}
	r.emit(table.Row{"Dataset", "Key", "Label", "Rows", "Confidence", "Referenced by"}, entries)
}

func (r *report) workflows() {
	r.heading(2, "Workflows")
	var entries []entry
	for _, w := range r.model.Workflows {
		transitions := make([]string, len(w.Transitions))
		for i, t := range w.Transitions {
			transitions[i] = fmt.Sprintf("%s -> %s (%d)", t.From, t.To, t.Count)
		}
		entries = append(entries, entry{
			kind: "workflow",
			id:   w.ID,
			row: table.Row{w.Dataset, w.StatusColumn, dash(w.EntityColumn), dash(w.OrderColumn),
				strings.Join(w.States, ", "), strings.Join(transitions, "; ")},
			text: fmt.Sprintf("Workflow on %s with states %s; transitions: %s.",
				qualified(w.Dataset, []string{w.StatusColumn}), strings.Join(w.States, ", "), orNone(transitions)),
		})
	}
	r.emit(table.Row{"Dataset", "Status", "Entity", "Ordered by", "States", "Transitions"}, entries)
}

func (r *report) deadColumns() {
	r.heading(2, "Dead columns")
	var entries []entry
	for _, d := range r.model.DeadColumns {
		entries = append(entries, entry{
			kind: "dead_column",
			id:   d.ID,
			row:  table.Row{d.Dataset, d.Column, string(d.Reason)},
			text: fmt.Sprintf("Column %s carries no signal: %s.", qualified(d.Dataset, []string{d.Column}), d.Reason),
		})
	}
	r.emit(table.Row{"Dataset", "Column", "Reason"}, entries)
}

func (r *report) warnings() {
	if len(r.model.Warnings) == 0 {
		return
	}
	r.heading(2, "Warnings")
	for _, w := range r.model.Warnings {
		subject := w.Dataset
		if subject == "" {
			subject = "run"
		}
		fmt.Fprintf(&r.sb, "- [%s] %s: %s\n", w.Stage, subject, w.Message)
	}
	r.sb.WriteString("\n")
}

func pct(f float64) string { return fmt.Sprintf("%.1f%%", f*100) }

func qualified(ds string, cols []string) string {
	if len(cols) == 1 {
		return fmt.Sprintf("`%s.%s`", ds, cols[0])
	}
	return fmt.Sprintf("`%s.(%s)`", ds, strings.Join(cols, ", "))
}

func nameSupport(ok bool) string {
	if ok {
		return ", supported by column names"
	}
	return ""
}

func domainSuffix(domain string) string {
	if domain == "" {
		return ""
	}
	return " Domain: " + domain + "."
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
