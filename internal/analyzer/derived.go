package analyzer

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

var concatSeparators = []string{"", " ", "-", "_", "/"}

// DerivedFieldDetector 派生字段检测
type DerivedFieldDetector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDerivedFieldDetector 创建派生字段检测器
func NewDerivedFieldDetector(cfg Config, logger *zap.Logger) *DerivedFieldDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DerivedFieldDetector{cfg: cfg, logger: logger.Named("derived")}
}

// hypothesis 目标列 = op(operands)
type hypothesis struct {
	op       graph.DerivedOperation
	operands []*column
	sep      string
}

// detect 对每个目标列检验同数据集兄弟列上的运算假设，保留匹配比例最高且达到阈值的一个。
// 第一轮只检验求和、乘积、日期差与拼接；第二轮对未被覆盖的列检验差与商，
// 同一组列只报告一次（total = price*quantity 成立时不再报告 price = total/quantity）
func (d *DerivedFieldDetector) detect(t *table) []graph.DerivedFieldCandidate {
	var numeric, dates, all []*column
	for _, c := range t.columns {
		if c.nonNull() == 0 || len(c.set) < 2 {
			continue
		}
		all = append(all, c)
		switch {
		case c.typ.IsNumeric():
			numeric = append(numeric, c)
		case c.typ == graph.TypeDate:
			dates = append(dates, c)
		}
	}

	var out []graph.DerivedFieldCandidate
	covered := make(map[string]bool)
	coveredKey := func(target *column, operands []*column) string {
		cols := append([]*column{target}, operands...)
		idx := make([]int, len(cols))
		for i, c := range cols {
			idx[i] = c.index
		}
		sort.Ints(idx)
		b := make([]byte, 0, len(idx)*3)
		for _, i := range idx {
			b = append(b, byte(i>>8), byte(i), ',')
		}
		return string(b)
	}
	done := make(map[*column]bool)

	for phase := 0; phase < 2; phase++ {
		for _, target := range all {
			if done[target] {
				continue
			}
			var best *graph.DerivedFieldCandidate
			var bestHyp hypothesis
			evaluated := 0
			complete := d.eachHypothesis(target, numeric, dates, all, phase, func(h hypothesis) bool {
				if covered[coveredKey(target, h.operands)] {
					return true
				}
				if evaluated >= d.cfg.DerivedMaxHypotheses {
					return false
				}
				evaluated++
				ratio, rows := d.evaluate(target, h)
				if rows < d.cfg.DerivedMinRows || ratio < d.cfg.DerivedThreshold {
					return true
				}
				if best == nil || ratio > best.MatchRatio {
					best = &graph.DerivedFieldCandidate{
						Dataset:    t.ds.Name,
						Target:     target.name,
						Operation:  h.op,
						Operands:   columnNames(h.operands),
						Separator:  h.sep,
						MatchRatio: ratio,
						Rows:       rows,
					}
					bestHyp = h
				}
				return true
			})
			truncated := !complete
			if best == nil {
				continue
			}
			best.Truncated = truncated
			out = append(out, *best)
			done[target] = true
			covered[coveredKey(target, bestHyp.operands)] = true
		}
	}

	if len(out) > 0 {
		d.logger.Debug("Derived fields found", zap.String("dataset", t.ds.Name), zap.Int("count", len(out)))
	}
	return out
}

// eachHypothesis 按代价从低到高逐个生成目标列的假设交给 fn，fn 返回 false 时停止；返回是否完整枚举。
// 第一轮：两列和、两列积、日期差、拼接，然后是更多操作数的和；第二轮：差与商
func (d *DerivedFieldDetector) eachHypothesis(target *column, numeric, dates, all []*column, phase int, fn func(hypothesis) bool) bool {
	if target.typ.IsTextual() {
		if phase != 0 {
			return true
		}
		return d.eachConcat(target, all, fn)
	}
	if !target.typ.IsNumeric() {
		return true
	}

	var operands []*column
	for _, c := range numeric {
		if c != target && !sameValues(c, target) {
			operands = append(operands, c)
		}
	}

	if phase != 0 {
		for _, a := range operands {
			for _, b := range operands {
				if a == b {
					continue
				}
				if !fn(hypothesis{op: graph.OpDifference, operands: []*column{a, b}}) ||
					!fn(hypothesis{op: graph.OpRatio, operands: []*column{a, b}}) {
					return false
				}
			}
		}
		return true
	}

	pick := func(idx []int) []*column {
		cols := make([]*column, len(idx))
		for i, j := range idx {
			cols[i] = operands[j]
		}
		return cols
	}
	if d.cfg.DerivedMaxOperands >= 2 {
		if !forEachCombination(len(operands), 2, func(idx []int) bool {
			return fn(hypothesis{op: graph.OpSum, operands: pick(idx)})
		}) {
			return false
		}
	}
	if !forEachCombination(len(operands), 2, func(idx []int) bool {
		return fn(hypothesis{op: graph.OpProduct, operands: pick(idx)})
	}) {
		return false
	}
	for _, a := range dates {
		for _, b := range dates {
			if a != b && !fn(hypothesis{op: graph.OpDateDifference, operands: []*column{a, b}}) {
				return false
			}
		}
	}
	for size := 3; size <= d.cfg.DerivedMaxOperands && size <= len(operands); size++ {
		if !forEachCombination(len(operands), size, func(idx []int) bool {
			return fn(hypothesis{op: graph.OpSum, operands: pick(idx)})
		}) {
			return false
		}
	}
	return true
}

// eachConcat 文本目标 = a + sep + b
func (d *DerivedFieldDetector) eachConcat(target *column, all []*column, fn func(hypothesis) bool) bool {
	for _, a := range all {
		for _, b := range all {
			if a == b || a == target || b == target {
				continue
			}
			for _, sep := range concatSeparators {
				if !fn(hypothesis{op: graph.OpConcatenation, operands: []*column{a, b}, sep: sep}) {
					return false
				}
			}
		}
	}
	return true
}

// evaluate 在目标与全部操作数非空的行上计算匹配比例；不可能达到阈值时提前结束
func (d *DerivedFieldDetector) evaluate(target *column, h hypothesis) (float64, int) {
	rows, matched := 0, 0
	eligible := 0
	for r := range target.values {
		if target.values[r].IsNull() {
			continue
		}
		ok := true
		for _, c := range h.operands {
			if c.values[r].IsNull() {
				ok = false
				break
			}
		}
		if ok {
			eligible++
		}
	}
	allowed := int(math.Floor(float64(eligible) * (1 - d.cfg.DerivedThreshold)))

	for r := range target.values {
		tv := target.values[r]
		if tv.IsNull() {
			continue
		}
		vals := make([]dataset.Value, len(h.operands))
		ok := true
		for i, c := range h.operands {
			vals[i] = c.values[r]
			if vals[i].IsNull() {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		rows++
		if d.matches(tv, h, vals) {
			matched++
		} else if rows-matched > allowed {
			return 0, eligible
		}
	}
	if rows == 0 {
		return 0, 0
	}
	return float64(matched) / float64(rows), rows
}

func (d *DerivedFieldDetector) matches(target dataset.Value, h hypothesis, vals []dataset.Value) bool {
	if h.op == graph.OpConcatenation {
		return target.Key() == vals[0].Key()+h.sep+vals[1].Key()
	}
	if target.Kind != dataset.KindNumber {
		return false
	}
	var got float64
	switch h.op {
	case graph.OpDateDifference:
		if vals[0].Kind != dataset.KindTime || vals[1].Kind != dataset.KindTime {
			return false
		}
		got = vals[0].Time.Sub(vals[1].Time).Hours() / 24
	default:
		for _, v := range vals {
			if v.Kind != dataset.KindNumber {
				return false
			}
		}
		switch h.op {
		case graph.OpSum:
			for _, v := range vals {
				got += v.Num
			}
		case graph.OpDifference:
			got = vals[0].Num - vals[1].Num
		case graph.OpProduct:
			got = vals[0].Num * vals[1].Num
		case graph.OpRatio:
			if vals[1].Num == 0 {
				return false
			}
			got = vals[0].Num / vals[1].Num
		}
	}
	return approxEqual(got, target.Num, d.cfg.DerivedTolerance)
}

// approxEqual 相对误差比较，|a-b| <= tol*max(1,|b|)
func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

// sameValues 两列在所有同时非空的行上取值相同（拷贝列不作为操作数）
func sameValues(a, b *column) bool {
	paired := 0
	for r := range a.values {
		if a.values[r].IsNull() || b.values[r].IsNull() {
			continue
		}
		paired++
		if a.keys[r] != b.keys[r] {
			return false
		}
	}
	return paired > 0
}
