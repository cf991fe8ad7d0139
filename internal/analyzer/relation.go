package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dataset-analyzer/internal/graph"
)

// RelationshipResolver 外键推断：对每个源列给所有目标主键打分，再为每个源列挑选最优目标
type RelationshipResolver struct {
	cfg    Config
	logger *zap.Logger
}

// NewRelationshipResolver 创建推断器
func NewRelationshipResolver(cfg Config, logger *zap.Logger) *RelationshipResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipResolver{cfg: cfg, logger: logger.Named("relationships")}
}

// keyTarget 可被引用的主键
type keyTarget struct {
	table *table
	key   graph.KeyCandidate
	cols  []*column
	set   map[string]struct{}
}

// sourceColumn 待解析的源列
type sourceColumn struct {
	table *table
	col   *column
}

// resolved 单个源列的结果槽
type resolved struct {
	rel      *graph.ForeignKeyRelationship
	notes    []graph.Note
	warnings []graph.Warning
}

// scoredMatch 一个 (源列, 目标键) 配对的打分
type scoredMatch struct {
	target      *keyTarget
	kind        graph.RelationshipKind
	containment float64
	confidence  float64
	nameScore   float64
	nameReason  string
}

// resolveResult 外键推断输出
type resolveResult struct {
	relationships []graph.ForeignKeyRelationship
	notes         []graph.Note
	warnings      []graph.Warning
}

// resolve 推断全部外键。每个源列的计算只读共享输入，结果写入自己的槽位，最后统一合并
func (r *RelationshipResolver) resolve(ctx context.Context, tables []*table) (resolveResult, error) {
	targets := r.targets(tables)

	var sources []sourceColumn
	for _, t := range tables {
		pk := t.primaryKey()
		for _, c := range t.columns {
			if c.nonNull() == 0 || c.typ == graph.TypeEmpty {
				continue
			}
			if pk != nil && !pk.Composite() && pk.Columns[0] == c.name {
				continue
			}
			sources = append(sources, sourceColumn{table: t, col: c})
		}
	}

	slots := make([]resolved, len(sources))
	var pairs atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if p := recover(); p != nil {
					slots[i] = resolved{warnings: []graph.Warning{{
						Dataset: sources[i].table.ds.Name,
						Stage:   "relationships",
						Message: fmt.Sprintf("scoring %s failed: %v", sources[i].col.name, p),
					}}}
				}
			}()
			slots[i] = r.resolveSource(sources[i], targets, &pairs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resolveResult{}, err
	}

	var out resolveResult
	for _, s := range slots {
		if s.rel != nil {
			out.relationships = append(out.relationships, *s.rel)
		}
		out.notes = append(out.notes, s.notes...)
		out.warnings = append(out.warnings, s.warnings...)
	}
	out.relationships = append(out.relationships, r.compositeRelationships(tables, targets)...)
	out.relationships = r.applyDeclared(tables, out.relationships)

	r.logger.Info("Relationships resolved",
		zap.Int("sources", len(sources)),
		zap.Int("targets", len(targets)),
		zap.Int64("pairs", pairs.Load()),
		zap.Int("relationships", len(out.relationships)))
	return out, nil
}

// targets 所有满足唯一性阈值的主键候选，附带其值集合
func (r *RelationshipResolver) targets(tables []*table) []*keyTarget {
	var out []*keyTarget
	for _, t := range tables {
		for _, k := range t.qualifiedKeys(r.cfg.UniquenessThreshold) {
			kt := &keyTarget{table: t, key: k}
			for _, name := range k.Columns {
				kt.cols = append(kt.cols, t.column(name))
			}
			if len(kt.cols) == 1 {
				kt.set = kt.cols[0].set
			} else {
				kt.set = tupleSet(kt.cols)
			}
			out = append(out, kt)
		}
	}
	return out
}

// resolveSource 先做显式（命名 + 类型 + 包含度）匹配，没有命中时再做隐式（仅包含度）匹配
func (r *RelationshipResolver) resolveSource(src sourceColumn, targets []*keyTarget, pairs *atomic.Int64) resolved {
	var res resolved
	var explicit, implicit []scoredMatch

	for _, kt := range targets {
		if kt.key.Composite() {
			continue
		}
		tc := kt.cols[0]
		if kt.table == src.table && tc == src.col {
			continue
		}
		nameScore, reason := nameMatch(src.col.name, tc.name, kt.table.ds.Name, r.cfg.NameSimilarity)
		if nameScore == 0 || !src.col.typ.CompatibleWith(tc.typ) {
			continue
		}
		pairs.Add(1)
		c := containment(src.col.set, kt.set)
		if c >= r.cfg.ExplicitThreshold {
			explicit = append(explicit, scoredMatch{
				target: kt, kind: graph.RelationshipExplicit,
				containment: c, confidence: c, nameScore: nameScore, nameReason: reason,
			})
			continue
		}
		res.notes = append(res.notes, graph.Note{
			Dataset: src.table.ds.Name,
			Stage:   "relationships",
			Subject: fmt.Sprintf("%s -> %s.%s", src.col.name, kt.table.ds.Name, tc.name),
			Reason:  graph.NoteThresholdNotMet,
			Detail:  fmt.Sprintf("containment %.3f below %.2f", c, r.cfg.ExplicitThreshold),
		})
	}

	if len(explicit) == 0 && r.implicitEligible(src.col) {
		for _, kt := range targets {
			if kt.key.Composite() || kt.table == src.table {
				continue
			}
			tc := kt.cols[0]
			if !src.col.typ.CompatibleWith(tc.typ) {
				continue
			}
			// 源列唯一值数不能明显多于目标键
			if float64(len(src.col.set)) > float64(len(kt.set))*(1+r.cfg.ImplicitTolerance) {
				continue
			}
			pairs.Add(1)
			c := containment(src.col.set, kt.set)
			if c >= r.cfg.ImplicitThreshold {
				implicit = append(implicit, scoredMatch{
					target: kt, kind: graph.RelationshipImplicit,
					containment: c, confidence: c * r.cfg.ImplicitPenalty,
				})
			}
		}
	}

	candidates := explicit
	if len(candidates) == 0 {
		candidates = implicit
	}
	if len(candidates) == 0 {
		return res
	}
	sort.SliceStable(candidates, func(i, j int) bool { return betterMatch(candidates[i], candidates[j]) })
	best := candidates[0]
	rel := r.relationship(src, best)
	res.rel = &rel

	r.logger.Debug("Relationship selected",
		zap.String("source", src.table.ds.Name+"."+src.col.name),
		zap.String("target", best.target.table.ds.Name+"."+best.target.cols[0].name),
		zap.String("kind", string(best.kind)),
		zap.Float64("confidence", best.confidence),
		zap.Int("alternatives", len(candidates)-1))
	return res
}

// implicitEligible 隐式匹配要求源列至少有 implicit_min_distinct 个唯一值，类型只在配对时检查兼容
func (r *RelationshipResolver) implicitEligible(c *column) bool {
	return c.typ != graph.TypeEmpty && len(c.set) >= r.cfg.ImplicitMinDistinct
}

// betterMatch 置信度高者优先；相同时键更简单者优先，再比较命名得分与名称
func betterMatch(a, b scoredMatch) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	if len(a.target.cols) != len(b.target.cols) {
		return len(a.target.cols) < len(b.target.cols)
	}
	if a.nameScore != b.nameScore {
		return a.nameScore > b.nameScore
	}
	if a.target.table.ds.Name != b.target.table.ds.Name {
		return a.target.table.ds.Name < b.target.table.ds.Name
	}
	return strings.Join(a.target.key.Columns, ",") < strings.Join(b.target.key.Columns, ",")
}

func (r *RelationshipResolver) relationship(src sourceColumn, m scoredMatch) graph.ForeignKeyRelationship {
	tc := m.target.cols[0]
	var evidence []graph.Evidence
	if m.nameScore > 0 {
		evidence = append(evidence, graph.Evidence{
			Type:        "naming_similarity",
			Score:       m.nameScore,
			Description: m.nameReason,
			Details:     fmt.Sprintf("%s ↔ %s (%.2f)", src.col.name, tc.name, m.nameScore),
		})
	}
	evidence = append(evidence,
		graph.Evidence{
			Type:        "type_match",
			Score:       1,
			Description: "compatible logical types",
			Details:     fmt.Sprintf("%s ↔ %s", src.col.typ, tc.typ),
		},
		graph.Evidence{
			Type:        "value_containment",
			Score:       m.containment,
			Description: "share of distinct source values present in the target key",
			Details:     fmt.Sprintf("%.1f%% of %d distinct values", m.containment*100, len(src.col.set)),
		})

	return graph.ForeignKeyRelationship{
		SourceDataset: src.table.ds.Name,
		SourceColumns: []string{src.col.name},
		TargetDataset: m.target.table.ds.Name,
		TargetColumns: []string{tc.name},
		Kind:          m.kind,
		Containment:   m.containment,
		Confidence:    m.confidence,
		NameScore:     m.nameScore,
		Cardinality:   cardinality([]*column{src.col}),
		Evidence:      evidence,
	}
}

// compositeRelationships 组合外键（仅显式）：源数据集包含与目标组合键逐列同名的列
func (r *RelationshipResolver) compositeRelationships(tables []*table, targets []*keyTarget) []graph.ForeignKeyRelationship {
	var out []graph.ForeignKeyRelationship
	for _, kt := range targets {
		if !kt.key.Composite() {
			continue
		}
		for _, t := range tables {
			if t == kt.table {
				continue
			}
			cols := matchColumns(t, kt.cols)
			if cols == nil {
				continue
			}
			set := tupleSet(cols)
			c := containment(set, kt.set)
			if c < r.cfg.ExplicitThreshold {
				continue
			}
			names := make([]string, len(cols))
			for i, col := range cols {
				names[i] = col.name
			}
			out = append(out, graph.ForeignKeyRelationship{
				SourceDataset: t.ds.Name,
				SourceColumns: names,
				TargetDataset: kt.table.ds.Name,
				TargetColumns: kt.key.Columns,
				Kind:          graph.RelationshipExplicit,
				Containment:   c,
				Confidence:    c,
				NameScore:     1,
				Cardinality:   cardinality(cols),
				Evidence: []graph.Evidence{
					{Type: "naming_similarity", Score: 1, Description: "every key column has a same-named counterpart", Details: strings.Join(names, ", ")},
					{Type: "value_containment", Score: c, Description: "share of distinct source tuples present in the target key", Details: fmt.Sprintf("%.1f%% of %d tuples", c*100, len(set))},
				},
			})
		}
	}
	return out
}

// matchColumns 为目标键的每一列在 t 中找到规范化同名、类型兼容的列
func matchColumns(t *table, keyCols []*column) []*column {
	out := make([]*column, 0, len(keyCols))
	for _, kc := range keyCols {
		want := normalizeName(kc.name)
		var found *column
		for _, c := range t.columns {
			if normalizeName(c.name) == want && c.typ.CompatibleWith(kc.typ) {
				found = c
				break
			}
		}
		if found == nil {
			return nil
		}
		out = append(out, found)
	}
	return out
}

// applyDeclared 数据源声明的外键按实测包含度输出为显式关系，替换同一源列上的推断结果
func (r *RelationshipResolver) applyDeclared(tables []*table, rels []graph.ForeignKeyRelationship) []graph.ForeignKeyRelationship {
	byName := make(map[string]*table, len(tables))
	for _, t := range tables {
		byName[t.ds.Name] = t
	}
	for _, t := range tables {
		for _, ref := range t.ds.DeclaredRefs {
			target, ok := byName[ref.TargetDataset]
			if !ok || len(ref.Columns) == 0 || len(ref.Columns) != len(ref.TargetColumns) {
				r.logger.Debug("Declared reference skipped", zap.String("dataset", t.ds.Name), zap.String("target", ref.TargetDataset))
				continue
			}
			src := lookupColumns(t, ref.Columns)
			dst := lookupColumns(target, ref.TargetColumns)
			if src == nil || dst == nil {
				continue
			}
			var srcSet, dstSet map[string]struct{}
			if len(src) == 1 {
				srcSet, dstSet = src[0].set, dst[0].set
			} else {
				srcSet, dstSet = tupleSet(src), tupleSet(dst)
			}
			c := containment(srcSet, dstSet)
			rel := graph.ForeignKeyRelationship{
				SourceDataset: t.ds.Name,
				SourceColumns: ref.Columns,
				TargetDataset: target.ds.Name,
				TargetColumns: ref.TargetColumns,
				Kind:          graph.RelationshipExplicit,
				Containment:   c,
				Confidence:    c,
				Cardinality:   cardinality(src),
				Declared:      true,
				Evidence: []graph.Evidence{
					{Type: "declared", Score: 1, Description: "constraint declared by the data source", Details: t.ds.Source},
					{Type: "value_containment", Score: c, Description: "share of distinct source values present in the target key", Details: fmt.Sprintf("%.1f%%", c*100)},
				},
			}

			ident := strings.Join(ref.Columns, "\x1f")
			replaced := false
			for i := range rels {
				if rels[i].SourceDataset == t.ds.Name && strings.Join(rels[i].SourceColumns, "\x1f") == ident {
					rel.NameScore = rels[i].NameScore
					rels[i] = rel
					replaced = true
					break
				}
			}
			if !replaced {
				rels = append(rels, rel)
			}
		}
	}
	return rels
}

func lookupColumns(t *table, names []string) []*column {
	out := make([]*column, 0, len(names))
	for _, n := range names {
		c := t.column(n)
		if c == nil {
			return nil
		}
		out = append(out, c)
	}
	return out
}

// containment 源唯一值中出现在目标集合里的比例
func containment(src, dst map[string]struct{}) float64 {
	if len(src) == 0 {
		return 0
	}
	hit := 0
	for k := range src {
		if _, ok := dst[k]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(src))
}

// tupleSet 多列组合的唯一值集合，含空值的行跳过
func tupleSet(cols []*column) map[string]struct{} {
	set := make(map[string]struct{})
	if len(cols) == 0 {
		return set
	}
	parts := make([]string, len(cols))
rows:
	for r := range cols[0].values {
		for i, c := range cols {
			if c.values[r].IsNull() {
				continue rows
			}
			parts[i] = c.keys[r]
		}
		set[tupleKey(parts)] = struct{}{}
	}
	return set
}

// cardinality 源值唯一时为 1:1，否则 N:1
func cardinality(cols []*column) string {
	if len(cols) == 1 {
		if len(cols[0].set) == cols[0].nonNull() {
			return graph.Cardinality1To1
		}
		return graph.CardinalityNTo1
	}
	nonNull := 0
	for r := range cols[0].values {
		ok := true
		for _, c := range cols {
			if c.values[r].IsNull() {
				ok = false
				break
			}
		}
		if ok {
			nonNull++
		}
	}
	if len(tupleSet(cols)) == nonNull {
		return graph.Cardinality1To1
	}
	return graph.CardinalityNTo1
}
