package analyzer

import (
	"sort"

	"go.uber.org/zap"

	"dataset-analyzer/internal/graph"
)

var (
	statusTokens = []string{"status", "state", "stage", "situacao", "fase"}
	orderTokens  = []string{"updated", "changed", "modified", "created", "timestamp", "date", "data", "at"}
)

// WorkflowDetector 状态流转检测
type WorkflowDetector struct {
	cfg    Config
	logger *zap.Logger
}

// NewWorkflowDetector 创建状态流转检测器
func NewWorkflowDetector(cfg Config, logger *zap.Logger) *WorkflowDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowDetector{cfg: cfg, logger: logger.Named("workflow")}
}

// detect 状态列取值即状态集合；有实体列和排序列时统计实体内相邻记录的状态迁移
func (w *WorkflowDetector) detect(t *table, rels []graph.ForeignKeyRelationship) *graph.Workflow {
	var status *column
	for _, c := range t.columns {
		n := len(c.set)
		if hasToken(c.name, statusTokens...) && n >= w.cfg.WorkflowMinStates && n <= w.cfg.WorkflowMaxStates && !c.typ.IsNumeric() {
			status = c
			break
		}
	}
	if status == nil {
		return nil
	}

	wf := &graph.Workflow{
		Dataset:      t.ds.Name,
		StatusColumn: status.name,
		States:       sortedDomain(status, len(status.set)),
		Transitions:  []graph.Transition{},
	}

	order := w.orderColumn(t)
	entity := w.entityColumn(t, rels)
	if order == nil || entity == nil {
		return wf
	}
	wf.OrderColumn = order.name
	wf.EntityColumn = entity.name

	var rows []int
	for r := range status.values {
		if !status.values[r].IsNull() && !order.values[r].IsNull() && !entity.values[r].IsNull() {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if entity.keys[a] != entity.keys[b] {
			return entity.keys[a] < entity.keys[b]
		}
		if c := order.values[a].Compare(order.values[b]); c != 0 {
			return c < 0
		}
		return a < b
	})

	counts := make(map[[2]string]int)
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if entity.keys[prev] != entity.keys[cur] || status.keys[prev] == status.keys[cur] {
			continue
		}
		counts[[2]string{status.keys[prev], status.keys[cur]}]++
	}
	for k, n := range counts {
		wf.Transitions = append(wf.Transitions, graph.Transition{From: k[0], To: k[1], Count: n})
	}
	sort.Slice(wf.Transitions, func(i, j int) bool {
		a, b := wf.Transitions[i], wf.Transitions[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	w.logger.Debug("Workflow detected",
		zap.String("dataset", t.ds.Name),
		zap.String("status", status.name),
		zap.Int("states", len(wf.States)),
		zap.Int("transitions", len(wf.Transitions)))
	return wf
}

// orderColumn 优先取命名像更新时间的日期列，否则取第一个日期列
func (w *WorkflowDetector) orderColumn(t *table) *column {
	var first *column
	for _, tok := range orderTokens {
		for _, c := range t.columns {
			if c.typ != graph.TypeDate {
				continue
			}
			if first == nil {
				first = c
			}
			if hasToken(c.name, tok) {
				return c
			}
		}
	}
	return first
}

// entityColumn 实体列：外键源列，否则取非主键的标识符列；实体必须重复出现
func (w *WorkflowDetector) entityColumn(t *table, rels []graph.ForeignKeyRelationship) *column {
	pk := t.primaryKey()
	isPK := func(c *column) bool { return pk != nil && !pk.Composite() && pk.Columns[0] == c.name }
	repeats := func(c *column) bool { return c.nonNull() > len(c.set) }

	for _, r := range rels {
		if r.SourceDataset != t.ds.Name || len(r.SourceColumns) != 1 {
			continue
		}
		if c := t.column(r.SourceColumns[0]); c != nil && !isPK(c) && repeats(c) {
			return c
		}
	}
	for _, c := range t.columns {
		if identifierLike(c.name) && !isPK(c) && repeats(c) {
			return c
		}
	}
	return nil
}
