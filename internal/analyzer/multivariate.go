package analyzer

import (
	"sort"

	"go.uber.org/zap"

	"dataset-analyzer/internal/graph"
)

// DependencyMiner 函数依赖与条件规则
type DependencyMiner struct {
	cfg    Config
	logger *zap.Logger
}

// NewDependencyMiner 创建依赖挖掘器
func NewDependencyMiner(cfg Config, logger *zap.Logger) *DependencyMiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DependencyMiner{cfg: cfg, logger: logger.Named("dependencies")}
}

// dependencyResult 单个数据集的规则挖掘结果
type dependencyResult struct {
	rules       []graph.MultivariateRule
	conditional []graph.ConditionalRule
	search      graph.SearchStats
}

// mine 有界搜索决定列集合：大小不超过 MaxDeterminantSize，评估数不超过 MaxRuleCombinations。
// 已知主键（及其超集）、近唯一列不作为决定列；已成立的 {a}->c 不再报告 {a,b}->c
func (m *DependencyMiner) mine(t *table) dependencyResult {
	res := dependencyResult{search: graph.SearchStats{
		Dataset: t.ds.Name,
		Stage:   "multivariate",
		Budget:  m.cfg.MaxRuleCombinations,
		MaxSize: m.cfg.MaxDeterminantSize,
	}}
	rows := t.ds.RowCount()
	if rows == 0 {
		return res
	}

	var members, dependents []*column
	for _, c := range t.columns {
		if c.nonNull() == 0 || len(c.set) < 2 {
			continue
		}
		dependents = append(dependents, c)
		if c.uniqueness() < m.cfg.DeterminantMaxUniqueness {
			members = append(members, c)
		}
	}

	qualified := t.qualifiedKeys(m.cfg.UniquenessThreshold)
	keySets := make([]map[string]bool, 0, len(qualified))
	for _, k := range qualified {
		set := make(map[string]bool, len(k.Columns))
		for _, c := range k.Columns {
			set[c] = true
		}
		keySets = append(keySets, set)
	}
	containsKey := func(cols []*column) bool {
		for _, ks := range keySets {
			hit := 0
			for _, c := range cols {
				if ks[c.name] {
					hit++
				}
			}
			if hit == len(ks) {
				return true
			}
		}
		return false
	}

	// held[dependent] = 已成立的决定列集合
	held := make(map[string][][]*column)
	subsumed := func(dep string, cols []*column) bool {
		for _, h := range held[dep] {
			if isSubset(h, cols) {
				return true
			}
		}
		return false
	}

	var found []graph.MultivariateRule
	for size := 1; size <= m.cfg.MaxDeterminantSize && size <= len(members); size++ {
		complete := forEachCombination(len(members), size, func(idx []int) bool {
			if res.search.Evaluated >= m.cfg.MaxRuleCombinations {
				return false
			}
			cols := make([]*column, len(idx))
			for i, j := range idx {
				cols[i] = members[j]
			}
			if containsKey(cols) {
				return true
			}
			res.search.Evaluated++

			groups, sizes := groupRows(cols, rows)
			for _, dep := range dependents {
				if inColumns(dep, cols) || subsumed(dep.name, cols) {
					continue
				}
				confidence, groupCount := dependencyConfidence(groups, sizes, dep)
				if groupCount < m.cfg.MultivariateMinGroups || confidence < m.cfg.MultivariateThreshold {
					continue
				}
				held[dep.name] = append(held[dep.name], cols)
				found = append(found, graph.MultivariateRule{
					Dataset:     t.ds.Name,
					Determinant: columnNames(cols),
					Dependent:   dep.name,
					Confidence:  confidence,
					Groups:      groupCount,
				})
			}
			return true
		})
		if !complete {
			res.search.Truncated = true
			break
		}
	}
	if res.search.Truncated {
		for i := range found {
			found[i].Truncated = true
		}
	}
	res.rules = found
	res.conditional = m.conditional(t)

	m.logger.Debug("Dependencies mined",
		zap.String("dataset", t.ds.Name),
		zap.Int("evaluated", res.search.Evaluated),
		zap.Bool("truncated", res.search.Truncated),
		zap.Int("rules", len(res.rules)),
		zap.Int("conditional", len(res.conditional)))
	return res
}

// groupRows 按决定列取值分组，返回每行的组号（含空值为 -1）和各组行数
func groupRows(cols []*column, rows int) ([]int, []int) {
	ids := make(map[string]int)
	groups := make([]int, rows)
	var sizes []int
	parts := make([]string, len(cols))
	for r := 0; r < rows; r++ {
		groups[r] = -1
		null := false
		for i, c := range cols {
			if c.values[r].IsNull() {
				null = true
				break
			}
			parts[i] = c.keys[r]
		}
		if null {
			continue
		}
		k := tupleKey(parts)
		id, ok := ids[k]
		if !ok {
			id = len(sizes)
			ids[k] = id
			sizes = append(sizes, 0)
		}
		sizes[id]++
		groups[r] = id
	}
	return groups, sizes
}

// dependencyConfidence 至少两行的组中，依赖列只取一个值的组所占比例
func dependencyConfidence(groups, sizes []int, dep *column) (float64, int) {
	first := make([]string, len(sizes))
	seen := make([]bool, len(sizes))
	conflict := make([]bool, len(sizes))
	for r, g := range groups {
		if g < 0 || dep.values[r].IsNull() {
			continue
		}
		k := dep.keys[r]
		if !seen[g] {
			seen[g] = true
			first[g] = k
		} else if first[g] != k {
			conflict[g] = true
		}
	}
	total, single := 0, 0
	for g, n := range sizes {
		if n < 2 || !seen[g] {
			continue
		}
		total++
		if !conflict[g] {
			single++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(single) / float64(total), total
}

// conditional 条件规则：低基数条件列取某值时，整体可空的目标列几乎总是非空
func (m *DependencyMiner) conditional(t *table) []graph.ConditionalRule {
	var conds, targets []*column
	for _, c := range t.columns {
		if n := len(c.set); n >= 2 && n <= m.cfg.ConditionalMaxCardinality {
			conds = append(conds, c)
		} else if c.nulls > 0 && c.nonNull() > 0 {
			targets = append(targets, c)
		}
	}
	for _, c := range conds {
		if c.nulls > 0 && c.nonNull() > 0 {
			targets = append(targets, c)
		}
	}

	var out []graph.ConditionalRule
	for _, cond := range conds {
		values := make([]string, 0, len(cond.set))
		for v := range cond.set {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			var rows []int
			for r, k := range cond.keys {
				if !cond.values[r].IsNull() && k == v {
					rows = append(rows, r)
				}
			}
			if len(rows) < m.cfg.MinRuleSupport {
				continue
			}
			for _, target := range targets {
				if target == cond {
					continue
				}
				nulls := 0
				for _, r := range rows {
					if target.values[r].IsNull() {
						nulls++
					}
				}
				ratio := float64(nulls) / float64(len(rows))
				// 组内空值比例须低于整体，否则只是列本身几乎不空
				overall := float64(target.nulls) / float64(len(target.values))
				if ratio > m.cfg.ConditionalMaxViolation || ratio >= overall {
					continue
				}
				out = append(out, graph.ConditionalRule{
					Dataset:        t.ds.Name,
					Condition:      cond.name,
					ConditionValue: v,
					Target:         target.name,
					Support:        len(rows),
					ViolationRatio: ratio,
				})
			}
		}
	}
	return out
}

func isSubset(sub, set []*column) bool {
	for _, s := range sub {
		if !inColumns(s, set) {
			return false
		}
	}
	return true
}

func inColumns(c *column, cols []*column) bool {
	for _, x := range cols {
		if x == c {
			return true
		}
	}
	return false
}

func columnNames(cols []*column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}
