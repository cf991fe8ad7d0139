package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// findingNamespace 所有结论 ID 的 UUIDv5 命名空间
var findingNamespace = uuid.MustParse("6f1c3c0e-2b7a-5d4e-9a51-3f0d2c8b7e15")

// FindingID 由 (数据集, 列集合, 结论类型) 确定性地生成 ID，输入不变则 ID 不变
func FindingID(kind, ds string, columns ...string) string {
	name := kind + "\x1f" + ds + "\x1f" + strings.Join(columns, "\x1e")
	return uuid.NewSHA1(findingNamespace, []byte(name)).String()
}

// colRef 结论引用的列
type colRef struct {
	dataset string
	column  string
}

// findingRef 结论的身份与引用
type findingRef struct {
	dataset string
	idCols  []string
	order   int
	refs    []colRef
	check   func() error
}

type aggregator struct {
	columns  map[string]map[string]int
	keys     map[string]bool
	seen     map[string]bool
	warnings []Warning
	logger   *zap.Logger
}

// Aggregate 合并各阶段输出为最终模型：分配稳定 ID、确定性排序，
// 丢弃引用不存在对象或自相矛盾的单条结论并记录警告，不做新的推断
func Aggregate(draft StructuralModel, logger *zap.Logger) *StructuralModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &aggregator{
		columns: make(map[string]map[string]int),
		keys:    make(map[string]bool),
		seen:    make(map[string]bool),
		logger:  logger.Named("aggregator"),
	}

	out := &StructuralModel{}
	for _, d := range draft.Datasets {
		if _, dup := a.columns[d.Name]; dup {
			a.warn(d.Name, "duplicate dataset summary dropped")
			continue
		}
		cols := make(map[string]int, len(d.Columns))
		for i, c := range d.Columns {
			cols[c] = i
		}
		a.columns[d.Name] = cols
		out.Datasets = append(out.Datasets, d)
	}
	sort.SliceStable(out.Datasets, func(i, j int) bool { return out.Datasets[i].Name < out.Datasets[j].Name })

	out.Profiles = collect(a, "profile", draft.Profiles, func(p *ColumnProfile) findingRef {
		return findingRef{
			dataset: p.Dataset, idCols: []string{p.Column},
			order: a.position(p.Dataset, p.Column),
			refs:  []colRef{{p.Dataset, p.Column}},
		}
	}, func(p *ColumnProfile, id string) { p.ID = id })

	out.Keys = collect(a, "key", draft.Keys, func(k *KeyCandidate) findingRef {
		return findingRef{
			dataset: k.Dataset, idCols: k.Columns, refs: refsOf(k.Dataset, k.Columns),
			check: func() error {
				if len(k.Columns) == 0 {
					return fmt.Errorf("key candidate without columns")
				}
				if !k.NullFree {
					return fmt.Errorf("key candidate %v is not null-free", k.Columns)
				}
				if k.Partial && k.Primary {
					return fmt.Errorf("partial key candidate %v marked primary", k.Columns)
				}
				return nil
			},
		}
	}, func(k *KeyCandidate, id string) { k.ID = id })
	for _, k := range out.Keys {
		if !k.Partial {
			a.keys[keyIdent(k.Dataset, k.Columns)] = true
		}
	}

	out.Searches = append(out.Searches, draft.Searches...)
	sort.SliceStable(out.Searches, func(i, j int) bool {
		if out.Searches[i].Dataset != out.Searches[j].Dataset {
			return out.Searches[i].Dataset < out.Searches[j].Dataset
		}
		return out.Searches[i].Stage < out.Searches[j].Stage
	})

	out.Relationships = collect(a, "relationship", draft.Relationships, func(r *ForeignKeyRelationship) findingRef {
		idCols := append(append(append([]string{}, r.SourceColumns...), "->", r.TargetDataset), r.TargetColumns...)
		refs := append(refsOf(r.SourceDataset, r.SourceColumns), refsOf(r.TargetDataset, r.TargetColumns)...)
		return findingRef{
			dataset: r.SourceDataset, idCols: idCols, refs: refs,
			check: func() error {
				if len(r.SourceColumns) == 0 || len(r.SourceColumns) != len(r.TargetColumns) {
					return fmt.Errorf("relationship column arity mismatch")
				}
				if r.Confidence < 0 || r.Confidence > 1 || r.Containment < 0 || r.Containment > 1 {
					return fmt.Errorf("relationship score out of range")
				}
				if r.SourceDataset == r.TargetDataset && strings.Join(r.SourceColumns, ",") == strings.Join(r.TargetColumns, ",") {
					return fmt.Errorf("self relationship on %v", r.SourceColumns)
				}
				if !a.keys[keyIdent(r.TargetDataset, r.TargetColumns)] {
					return fmt.Errorf("target %s%v is not a key candidate", r.TargetDataset, r.TargetColumns)
				}
				return nil
			},
		}
	}, func(r *ForeignKeyRelationship, id string) { r.ID = id })

	out.TemporalRules = collect(a, "temporal_rule", draft.TemporalRules, func(r *TemporalRule) findingRef {
		return findingRef{
			dataset: r.Dataset, idCols: []string{r.ColumnA, r.ColumnB},
			refs: []colRef{{r.Dataset, r.ColumnA}, {r.Dataset, r.ColumnB}},
			check: func() error {
				if r.ColumnA == r.ColumnB {
					return fmt.Errorf("temporal rule compares %s with itself", r.ColumnA)
				}
				return nil
			},
		}
	}, func(r *TemporalRule, id string) { r.ID = id })

	out.MultivariateRules = collect(a, "multivariate_rule", draft.MultivariateRules, func(r *MultivariateRule) findingRef {
		idCols := append(append([]string{}, r.Determinant...), "->", r.Dependent)
		return findingRef{
			dataset: r.Dataset, idCols: idCols,
			refs: append(refsOf(r.Dataset, r.Determinant), colRef{r.Dataset, r.Dependent}),
			check: func() error {
				for _, d := range r.Determinant {
					if d == r.Dependent {
						return fmt.Errorf("dependent %s is part of its determinant", d)
					}
				}
				return nil
			},
		}
	}, func(r *MultivariateRule, id string) { r.ID = id })

	out.ConditionalRules = collect(a, "conditional_rule", draft.ConditionalRules, func(r *ConditionalRule) findingRef {
		return findingRef{
			dataset: r.Dataset, idCols: []string{r.Condition, "=" + r.ConditionValue, r.Target},
			refs: []colRef{{r.Dataset, r.Condition}, {r.Dataset, r.Target}},
		}
	}, func(r *ConditionalRule, id string) { r.ID = id })

	out.DerivedFields = collect(a, "derived_field", draft.DerivedFields, func(d *DerivedFieldCandidate) findingRef {
		return findingRef{
			dataset: d.Dataset, idCols: []string{d.Target},
			order: a.position(d.Dataset, d.Target),
			refs:  append(refsOf(d.Dataset, d.Operands), colRef{d.Dataset, d.Target}),
		}
	}, func(d *DerivedFieldCandidate, id string) { d.ID = id })

	out.Dimensions = collect(a, "dimension", draft.Dimensions, func(d *DimensionCandidate) findingRef {
		return findingRef{
			dataset: d.Dataset, idCols: []string{d.Column},
			order: a.position(d.Dataset, d.Column),
			refs:  []colRef{{d.Dataset, d.Column}},
		}
	}, func(d *DimensionCandidate, id string) { d.ID = id })

	out.LookupTables = collect(a, "lookup_table", draft.LookupTables, func(l *LookupTable) findingRef {
		refs := []colRef{{l.Dataset, l.KeyColumn}}
		if l.LabelColumn != "" {
			refs = append(refs, colRef{l.Dataset, l.LabelColumn})
		}
		return findingRef{dataset: l.Dataset, idCols: []string{l.KeyColumn}, refs: refs}
	}, func(l *LookupTable, id string) { l.ID = id })

	out.BusinessFields = collect(a, "business_field", draft.BusinessFields, func(b *BusinessField) findingRef {
		return findingRef{
			dataset: b.Dataset, idCols: []string{b.Column},
			order: a.position(b.Dataset, b.Column),
			refs:  []colRef{{b.Dataset, b.Column}},
		}
	}, func(b *BusinessField, id string) { b.ID = id })

	out.DeadColumns = collect(a, "dead_column", draft.DeadColumns, func(d *DeadColumn) findingRef {
		return findingRef{
			dataset: d.Dataset, idCols: []string{d.Column},
			order: a.position(d.Dataset, d.Column),
			refs:  []colRef{{d.Dataset, d.Column}},
		}
	}, func(d *DeadColumn, id string) { d.ID = id })

	out.Workflows = collect(a, "workflow", draft.Workflows, func(w *Workflow) findingRef {
		refs := []colRef{{w.Dataset, w.StatusColumn}}
		if w.EntityColumn != "" {
			refs = append(refs, colRef{w.Dataset, w.EntityColumn})
		}
		if w.OrderColumn != "" {
			refs = append(refs, colRef{w.Dataset, w.OrderColumn})
		}
		return findingRef{dataset: w.Dataset, idCols: []string{w.StatusColumn}, refs: refs}
	}, func(w *Workflow, id string) { w.ID = id })

	out.Notes = append(out.Notes, draft.Notes...)
	sort.SliceStable(out.Notes, func(i, j int) bool {
		return noteKey(out.Notes[i]) < noteKey(out.Notes[j])
	})

	out.Warnings = append(append(out.Warnings, draft.Warnings...), a.warnings...)
	sort.SliceStable(out.Warnings, func(i, j int) bool {
		wi, wj := out.Warnings[i], out.Warnings[j]
		if wi.Dataset != wj.Dataset {
			return wi.Dataset < wj.Dataset
		}
		if wi.Stage != wj.Stage {
			return wi.Stage < wj.Stage
		}
		return wi.Message < wj.Message
	})

	a.logger.Debug("Model aggregated",
		zap.Int("datasets", len(out.Datasets)),
		zap.Int("relationships", len(out.Relationships)),
		zap.Int("dropped", len(a.warnings)))

	return out
}

// collect 校验、分配 ID 并排序某一类结论
func collect[T any](a *aggregator, kind string, items []T, describe func(*T) findingRef, setID func(*T, string)) []T {
	type entry struct {
		item  T
		ref   findingRef
		ident string
	}
	var kept []entry
	for i := range items {
		item := items[i]
		ref := describe(&item)
		if err := a.validate(ref); err != nil {
			a.warn(ref.dataset, fmt.Sprintf("%s dropped: %v", kind, err))
			continue
		}
		id := FindingID(kind, ref.dataset, ref.idCols...)
		if a.seen[id] {
			a.warn(ref.dataset, fmt.Sprintf("%s dropped: duplicate finding for %v", kind, ref.idCols))
			continue
		}
		a.seen[id] = true
		setID(&item, id)
		kept = append(kept, entry{item: item, ref: ref, ident: strings.Join(ref.idCols, "\x1e")})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		ri, rj := kept[i].ref, kept[j].ref
		if ri.dataset != rj.dataset {
			return ri.dataset < rj.dataset
		}
		if ri.order != rj.order {
			return ri.order < rj.order
		}
		return kept[i].ident < kept[j].ident
	})

	out := make([]T, 0, len(kept))
	for _, e := range kept {
		out = append(out, e.item)
	}
	return out
}

func (a *aggregator) validate(ref findingRef) error {
	if _, ok := a.columns[ref.dataset]; !ok {
		return fmt.Errorf("unknown dataset %q", ref.dataset)
	}
	for _, r := range ref.refs {
		cols, ok := a.columns[r.dataset]
		if !ok {
			return fmt.Errorf("unknown dataset %q", r.dataset)
		}
		if _, ok := cols[r.column]; !ok {
			return fmt.Errorf("unknown column %s.%s", r.dataset, r.column)
		}
	}
	if ref.check != nil {
		return ref.check()
	}
	return nil
}

func (a *aggregator) position(ds, column string) int {
	if cols, ok := a.columns[ds]; ok {
		if i, ok := cols[column]; ok {
			return i
		}
	}
	return -1
}

func (a *aggregator) warn(ds, msg string) {
	a.logger.Warn("Finding dropped", zap.String("dataset", ds), zap.String("reason", msg))
	a.warnings = append(a.warnings, Warning{Dataset: ds, Stage: "aggregate", Message: msg})
}

func refsOf(ds string, columns []string) []colRef {
	out := make([]colRef, 0, len(columns))
	for _, c := range columns {
		out = append(out, colRef{ds, c})
	}
	return out
}

func keyIdent(ds string, columns []string) string {
	return ds + "\x1f" + strings.Join(columns, "\x1e")
}

func noteKey(n Note) string {
	return n.Dataset + "\x1f" + n.Stage + "\x1f" + n.Subject + "\x1f" + string(n.Reason)
}
