package analyzer

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"dataset-analyzer/internal/graph"
)

// usage 记录列参与了哪些结构化结论
type usage struct {
	keys      map[string]bool
	fks       map[string]bool
	rules     map[string]bool
	fkTargets map[string][]string // 被引用列 -> 引用方
	lookupRef map[string]bool     // 引用码表的列
}

func colID(ds, column string) string { return ds + "\x1f" + column }

func newUsage() *usage {
	return &usage{
		keys:      make(map[string]bool),
		fks:       make(map[string]bool),
		rules:     make(map[string]bool),
		fkTargets: make(map[string][]string),
		lookupRef: make(map[string]bool),
	}
}

// SemanticClassifier 业务字段、维度候选与死列
type SemanticClassifier struct {
	cfg    Config
	logger *zap.Logger
}

// NewSemanticClassifier 创建分类器
func NewSemanticClassifier(cfg Config, logger *zap.Logger) *SemanticClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticClassifier{cfg: cfg, logger: logger.Named("semantic")}
}

// classification 分类结果
type classification struct {
	business   []graph.BusinessField
	dimensions []graph.DimensionCandidate
	dead       []graph.DeadColumn
}

// findings 前序阶段的输出，分类器只读
type findings struct {
	relationships []graph.ForeignKeyRelationship
	temporal      []graph.TemporalRule
	multivariate  []graph.MultivariateRule
	conditional   []graph.ConditionalRule
	derived       []graph.DerivedFieldCandidate
	lookups       []graph.LookupTable
}

func (s *SemanticClassifier) usageOf(tables []*table, f findings) *usage {
	u := newUsage()
	for _, t := range tables {
		for _, k := range t.keys {
			for _, c := range k.Columns {
				u.keys[colID(t.ds.Name, c)] = true
			}
		}
	}
	lookups := make(map[string]bool)
	for _, l := range f.lookups {
		lookups[l.Dataset] = true
	}
	for _, r := range f.relationships {
		for _, c := range r.SourceColumns {
			u.fks[colID(r.SourceDataset, c)] = true
			if lookups[r.TargetDataset] {
				u.lookupRef[colID(r.SourceDataset, c)] = true
			}
		}
		for _, c := range r.TargetColumns {
			id := colID(r.TargetDataset, c)
			u.fks[id] = true
			u.fkTargets[id] = append(u.fkTargets[id], r.SourceDataset+"."+r.SourceColumns[0])
		}
	}
	for _, r := range f.temporal {
		u.rules[colID(r.Dataset, r.ColumnA)] = true
		u.rules[colID(r.Dataset, r.ColumnB)] = true
	}
	for _, r := range f.multivariate {
		for _, c := range r.Determinant {
			u.rules[colID(r.Dataset, c)] = true
		}
		u.rules[colID(r.Dataset, r.Dependent)] = true
	}
	for _, r := range f.conditional {
		u.rules[colID(r.Dataset, r.Condition)] = true
		u.rules[colID(r.Dataset, r.Target)] = true
	}
	for _, d := range f.derived {
		u.rules[colID(d.Dataset, d.Target)] = true
		for _, c := range d.Operands {
			u.rules[colID(d.Dataset, c)] = true
		}
	}
	for _, l := range f.lookups {
		u.rules[colID(l.Dataset, l.KeyColumn)] = true
		if l.LabelColumn != "" {
			u.rules[colID(l.Dataset, l.LabelColumn)] = true
		}
	}
	return u
}

// classify 依次计算维度候选、业务字段和死列（死列依赖前两者）
func (s *SemanticClassifier) classify(tables []*table, f findings) classification {
	u := s.usageOf(tables, f)
	var out classification
	for _, t := range tables {
		out.dimensions = append(out.dimensions, s.dimensions(t, tables, u)...)
	}
	dims := make(map[string]bool)
	for _, d := range out.dimensions {
		dims[colID(d.Dataset, d.Column)] = true
	}
	for _, t := range tables {
		out.business = append(out.business, s.business(t, u, dims)...)
	}
	biz := make(map[string]bool)
	for _, b := range out.business {
		biz[colID(b.Dataset, b.Column)] = true
	}
	for _, t := range tables {
		out.dead = append(out.dead, s.dead(t, u, biz, dims)...)
	}

	s.logger.Info("Columns classified",
		zap.Int("business_fields", len(out.business)),
		zap.Int("dimensions", len(out.dimensions)),
		zap.Int("dead_columns", len(out.dead)))
	return out
}

// dimensions 维度候选：score = w*低基数 + (1-w)*复用
func (s *SemanticClassifier) dimensions(t *table, tables []*table, u *usage) []graph.DimensionCandidate {
	var out []graph.DimensionCandidate
	pk := t.primaryKey()
	for _, c := range t.columns {
		if c.nonNull() < s.cfg.DimensionMinRows || len(c.set) < 2 {
			continue
		}
		switch c.typ {
		case graph.TypeDecimal, graph.TypeDate, graph.TypeEmpty:
			continue
		}
		if pk != nil && !pk.Composite() && pk.Columns[0] == c.name {
			continue
		}

		low := 1 - float64(len(c.set))/float64(c.nonNull())
		id := colID(t.ds.Name, c.name)
		refs := u.fkTargets[id]
		reuse := math.Min(1, float64(len(refs))/float64(s.cfg.DimensionSaturation))
		if u.lookupRef[id] {
			reuse = 1
		}
		if reuse < 1 && low >= 0.5 {
			reuse = math.Max(reuse, s.valueOverlap(t, c, tables))
		}

		score := s.cfg.DimensionWeight*low + (1-s.cfg.DimensionWeight)*reuse
		if score < s.cfg.DimensionThreshold {
			continue
		}
		sorted := append([]string(nil), refs...)
		sort.Strings(sorted)
		out = append(out, graph.DimensionCandidate{
			Dataset:          t.ds.Name,
			Column:           c.name,
			CardinalityScore: round4(low),
			ReuseScore:       round4(reuse),
			Score:            round4(score),
			ReferencedBy:     sorted,
		})
	}
	return out
}

// valueOverlap 其他数据集中类型兼容的列覆盖本列取值的最大比例
func (s *SemanticClassifier) valueOverlap(t *table, c *column, tables []*table) float64 {
	best := 0.0
	for _, other := range tables {
		if other == t {
			continue
		}
		for _, oc := range other.columns {
			if len(oc.set) < 2 || !c.typ.CompatibleWith(oc.typ) {
				continue
			}
			if v := containment(c.set, oc.set); v > best {
				best = v
			}
		}
	}
	return best
}

// surrogateName 纯结构性的标识列
func surrogateName(name string) bool {
	tokens := nameTokens(name)
	return len(tokens) > 0 && (tokens[len(tokens)-1] == "id" || tokens[len(tokens)-1] == "uuid")
}

// business 业务字段打分：闭合取值域、语义模式、语义类别和规则参与度加分，代理键减分
func (s *SemanticClassifier) business(t *table, u *usage, dims map[string]bool) []graph.BusinessField {
	var out []graph.BusinessField
	rows := t.ds.RowCount()
	if rows == 0 {
		return nil
	}
	for i, c := range t.columns {
		prof := t.profiles[i]
		if c.nonNull() == 0 || len(c.set) < 2 {
			continue
		}
		id := colID(t.ds.Name, c.name)
		score := 0.0
		var reasons []string
		var domain []string

		uniqueRatio := float64(len(c.set)) / float64(rows)
		nullRatio := float64(c.nulls) / float64(rows)
		if uniqueRatio < s.cfg.BusinessMaxUnique && nullRatio < s.cfg.BusinessMaxNull {
			score += 0.4
			reasons = append(reasons, fmt.Sprintf("closed domain of %d values", len(c.set)))
			domain = sortedDomain(c, s.cfg.SampleValues)
		}
		switch prof.Pattern {
		case graph.PatternEmail, graph.PatternPhone, graph.PatternURL, graph.PatternCurrency, graph.PatternCode:
			score += 0.3
			reasons = append(reasons, "value pattern "+string(prof.Pattern))
		case graph.PatternUUID, graph.PatternSequential:
			score -= 0.3
		}
		switch prof.Category {
		case "monetary", "status", "boolean", "temporal":
			score += 0.2
			reasons = append(reasons, "name suggests "+prof.Category)
		}
		if u.rules[id] || dims[id] {
			score += 0.2
			reasons = append(reasons, "participates in rules")
		}
		if (u.keys[id] || u.fks[id]) && (surrogateName(c.name) || identifierLike(c.name)) {
			score -= 0.5
		}

		score = round4(score)
		if score < s.cfg.BusinessThreshold {
			continue
		}
		out = append(out, graph.BusinessField{
			Dataset: t.ds.Name,
			Column:  c.name,
			Score:   math.Min(1, score),
			Reasons: reasons,
			Domain:  domain,
		})
	}
	return out
}

func sortedDomain(c *column, limit int) []string {
	out := make([]string, 0, len(c.set))
	for v := range c.set {
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// dead 死列：全空 > 单一常量 > 从未被引用，只取第一个成立的原因
func (s *SemanticClassifier) dead(t *table, u *usage, biz, dims map[string]bool) []graph.DeadColumn {
	var out []graph.DeadColumn
	if t.ds.RowCount() == 0 {
		return nil
	}
	for _, c := range t.columns {
		id := colID(t.ds.Name, c.name)
		var reason graph.DeadReason
		switch {
		case c.nulls == len(c.values):
			reason = graph.DeadAllNull
		case len(c.set) <= 1:
			reason = graph.DeadConstant
		case !u.keys[id] && !u.fks[id] && !u.rules[id] && !biz[id] && !dims[id]:
			reason = graph.DeadNeverReference
		default:
			continue
		}
		out = append(out, graph.DeadColumn{Dataset: t.ds.Name, Column: c.name, Reason: reason})
	}
	return out
}

func round4(f float64) float64 { return math.Round(f*1e4) / 1e4 }
