package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"dataset-analyzer/internal/graph"
)

// KeyDetector 主键候选检测
type KeyDetector struct {
	cfg    Config
	logger *zap.Logger
}

// NewKeyDetector 创建主键检测器
func NewKeyDetector(cfg Config, logger *zap.Logger) *KeyDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyDetector{cfg: cfg, logger: logger.Named("keys")}
}

// detect 填充 t.keys / t.search。唯一性在全部行上精确计算，不使用样本
func (k *KeyDetector) detect(t *table) {
	name := t.ds.Name
	if t.ds.RowCount() == 0 {
		t.notes = append(t.notes, graph.Note{
			Dataset: name, Stage: "keys", Subject: name,
			Reason: graph.NoteInsufficientData, Detail: "dataset has no rows",
		})
		return
	}

	singles := k.singleColumn(t)
	declared := k.declaredKey(t)

	if len(singles) > 0 {
		t.keys = singles
		if declared != nil {
			k.mergeDeclared(t, *declared)
		}
		if !k.hasPrimary(t) {
			t.keys[0].Primary = true
		}
		return
	}

	composites, stats := k.composite(t)
	t.search = &stats
	t.keys = composites
	if declared != nil {
		k.mergeDeclared(t, *declared)
	}
	if len(t.keys) == 0 {
		t.notes = append(t.notes, graph.Note{
			Dataset: name, Stage: "keys", Subject: name,
			Reason: graph.NoteThresholdNotMet,
			Detail: fmt.Sprintf("no column set up to %d columns reaches uniqueness %.2f", k.cfg.MaxKeySize, k.cfg.UniquenessThreshold),
		})
		return
	}
	if !k.hasPrimary(t) && t.keys[0].Uniqueness >= k.cfg.UniquenessThreshold {
		t.keys[0].Primary = true
	}
}

// singleColumn 单列候选：非空且唯一比例达到阈值，按唯一比例、标识符命名、列顺序排序
func (k *KeyDetector) singleColumn(t *table) []graph.KeyCandidate {
	var out []graph.KeyCandidate
	for _, c := range t.columns {
		if c.nulls > 0 || c.nonNull() == 0 {
			continue
		}
		u := c.uniqueness()
		if u < k.cfg.UniquenessThreshold {
			continue
		}
		out = append(out, graph.KeyCandidate{
			Dataset:    t.ds.Name,
			Columns:    []string{c.name},
			Uniqueness: u,
			NullFree:   true,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Uniqueness != out[j].Uniqueness {
			return out[i].Uniqueness > out[j].Uniqueness
		}
		ii, ij := identifierLike(out[i].Columns[0]), identifierLike(out[j].Columns[0])
		if ii != ij {
			return ii
		}
		return t.column(out[i].Columns[0]).index < t.column(out[j].Columns[0]).index
	})
	return out
}

// composite 有界组合搜索：成员列数、子集大小和评估次数都有上限，超限时标记 truncated 并返回当前最优
func (k *KeyDetector) composite(t *table) ([]graph.KeyCandidate, graph.SearchStats) {
	stats := graph.SearchStats{
		Dataset: t.ds.Name,
		Stage:   "composite_key",
		Budget:  k.cfg.MaxKeyCombinations,
		MaxSize: k.cfg.MaxKeySize,
	}

	var members []*column
	for _, c := range t.columns {
		if c.nulls == 0 && c.uniqueness() > k.cfg.CompositeMinUniqueness {
			members = append(members, c)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].uniqueness() > members[j].uniqueness()
	})
	if len(members) > k.cfg.MaxCompositeMemberCount {
		members = members[:k.cfg.MaxCompositeMemberCount]
		stats.Truncated = true
	}

	rows := t.ds.RowCount()
	type scored struct {
		cols       []*column
		uniqueness float64
	}
	var best scored
	var found []scored

	for size := 2; size <= k.cfg.MaxKeySize && size <= len(members); size++ {
		complete := forEachCombination(len(members), size, func(idx []int) bool {
			if stats.Evaluated >= k.cfg.MaxKeyCombinations {
				return false
			}
			stats.Evaluated++
			cols := make([]*column, len(idx))
			for i, j := range idx {
				cols[i] = members[j]
			}
			u := tupleUniqueness(cols, rows)
			if u > best.uniqueness {
				best = scored{cols: cols, uniqueness: u}
			}
			if u >= k.cfg.UniquenessThreshold {
				found = append(found, scored{cols: cols, uniqueness: u})
			}
			return true
		})
		if !complete {
			stats.Truncated = true
		}
		if len(found) > 0 || !complete {
			break
		}
	}

	if len(found) == 0 && len(members) > k.cfg.MaxKeySize {
		// 更大的子集超出上限未评估
		stats.Truncated = true
	}

	var out []graph.KeyCandidate
	if len(found) > 0 {
		top := 0.0
		for _, f := range found {
			if f.uniqueness > top {
				top = f.uniqueness
			}
		}
		for _, f := range found {
			if f.uniqueness == top {
				out = append(out, k.candidate(t, f.cols, f.uniqueness, stats.Truncated))
			}
		}
	} else if stats.Truncated && best.cols != nil {
		// 预算耗尽仍未达到阈值：返回目前最好的组合，不作为主键
		partial := k.candidate(t, best.cols, best.uniqueness, true)
		partial.Partial = true
		out = append(out, partial)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.Join(out[i].Columns, ",") < strings.Join(out[j].Columns, ",")
	})
	if len(out) > 1 {
		for i := range out {
			out[i].Tie = true
		}
	}

	k.logger.Debug("Composite key search finished",
		zap.String("dataset", t.ds.Name),
		zap.Int("members", len(members)),
		zap.Int("evaluated", stats.Evaluated),
		zap.Bool("truncated", stats.Truncated),
		zap.Int("candidates", len(out)))
	return out, stats
}

// candidate 组合键列按数据集列顺序排列，保证 ID 稳定
func (k *KeyDetector) candidate(t *table, cols []*column, u float64, truncated bool) graph.KeyCandidate {
	ordered := append([]*column(nil), cols...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })
	names := make([]string, len(ordered))
	for i, c := range ordered {
		names[i] = c.name
	}
	return graph.KeyCandidate{
		Dataset:    t.ds.Name,
		Columns:    names,
		Uniqueness: u,
		NullFree:   true,
		Truncated:  truncated,
	}
}

// declaredKey 校验数据源声明的主键，不成立时返回 nil
func (k *KeyDetector) declaredKey(t *table) *graph.KeyCandidate {
	if len(t.ds.DeclaredKey) == 0 {
		return nil
	}
	cols := make([]*column, 0, len(t.ds.DeclaredKey))
	for _, name := range t.ds.DeclaredKey {
		c := t.column(name)
		if c == nil || c.nulls > 0 {
			k.logger.Debug("Declared key does not hold on data", zap.String("dataset", t.ds.Name), zap.Strings("columns", t.ds.DeclaredKey))
			return nil
		}
		cols = append(cols, c)
	}
	u := tupleUniqueness(cols, t.ds.RowCount())
	if u < k.cfg.UniquenessThreshold {
		k.logger.Debug("Declared key does not hold on data", zap.String("dataset", t.ds.Name), zap.Float64("uniqueness", u))
		return nil
	}
	c := k.candidate(t, cols, u, false)
	c.Declared = true
	return &c
}

// mergeDeclared 声明的主键在数据上成立时标记为 declared 并作为首选
func (k *KeyDetector) mergeDeclared(t *table, declared graph.KeyCandidate) {
	ident := strings.Join(declared.Columns, "\x1f")
	for i := range t.keys {
		if strings.Join(t.keys[i].Columns, "\x1f") == ident {
			t.keys[i].Declared = true
			t.keys[i].Primary = true
			return
		}
	}
	if declared.Composite() && len(t.keys) > 0 && !t.keys[0].Composite() {
		// 单列候选优先
		t.keys = append(t.keys, declared)
		return
	}
	declared.Primary = true
	t.keys = append([]graph.KeyCandidate{declared}, t.keys...)
}

func (k *KeyDetector) hasPrimary(t *table) bool {
	for _, key := range t.keys {
		if key.Primary {
			return true
		}
	}
	return false
}

// tupleUniqueness 多列组合的精确唯一比例（成员列均非空）
func tupleUniqueness(cols []*column, rows int) float64 {
	if rows == 0 {
		return 0
	}
	seen := make(map[string]struct{}, rows)
	parts := make([]string, len(cols))
	for r := 0; r < rows; r++ {
		for i, c := range cols {
			parts[i] = c.keys[r]
		}
		seen[tupleKey(parts)] = struct{}{}
	}
	return float64(len(seen)) / float64(rows)
}
