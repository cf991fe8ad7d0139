package analyzer

import (
	"fmt"

	"go.uber.org/zap"

	"dataset-analyzer/internal/graph"
)

// 列名中表示先后顺序的词元
var (
	earlyTokens = []string{"inicio", "start", "begin", "issue", "issued", "created", "emissao", "emit", "kick", "order", "open", "opened", "signup", "requested", "placed", "from", "birth"}
	lateTokens  = []string{"fim", "end", "due", "payment", "paid", "venc", "vencimento", "updated", "update", "ship", "shipped", "delivery", "delivered", "close", "closed", "finish", "finished", "resolved", "expiry", "expires", "to"}
)

// TemporalMiner 时间先后规则
type TemporalMiner struct {
	cfg    Config
	logger *zap.Logger
}

// NewTemporalMiner 创建时间规则挖掘器
func NewTemporalMiner(cfg Config, logger *zap.Logger) *TemporalMiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemporalMiner{cfg: cfg, logger: logger.Named("temporal")}
}

// temporalCandidate 一个方向与运算符的假设
type temporalCandidate struct {
	a, b      *column
	op        graph.TemporalOperator
	compliant int
}

// mine 对数据集内每对日期列计算三种运算符的遵从比例，报告最高者
func (m *TemporalMiner) mine(t *table) ([]graph.TemporalRule, []graph.Note) {
	var dates []*column
	for _, c := range t.columns {
		if c.typ == graph.TypeDate {
			dates = append(dates, c)
		}
	}

	var rules []graph.TemporalRule
	var notes []graph.Note
	for i := 0; i < len(dates); i++ {
		for j := i + 1; j < len(dates); j++ {
			a, b := dates[i], dates[j]
			lt, eq, gt := compareColumns(a, b)
			paired := lt + eq + gt
			subject := fmt.Sprintf("%s, %s", a.name, b.name)
			if paired < m.cfg.TemporalMinPairs {
				notes = append(notes, graph.Note{
					Dataset: t.ds.Name, Stage: "temporal", Subject: subject,
					Reason: graph.NoteInsufficientData,
					Detail: fmt.Sprintf("%d paired rows, need %d", paired, m.cfg.TemporalMinPairs),
				})
				continue
			}

			// 遵从比例相同时按 = , <= , < 的顺序取，方向优先取列顺序
			candidates := []temporalCandidate{
				{a, b, graph.OpEqual, eq},
				{a, b, graph.OpLessOrEqual, lt + eq},
				{b, a, graph.OpLessOrEqual, gt + eq},
				{a, b, graph.OpLess, lt},
				{b, a, graph.OpLess, gt},
			}
			best := candidates[0]
			for _, c := range candidates[1:] {
				if c.compliant > best.compliant {
					best = c
				}
			}
			compliance := float64(best.compliant) / float64(paired)
			if compliance < m.cfg.TemporalThreshold {
				notes = append(notes, graph.Note{
					Dataset: t.ds.Name, Stage: "temporal", Subject: subject,
					Reason: graph.NoteThresholdNotMet,
					Detail: fmt.Sprintf("best %s %s %s holds in %.3f", best.a.name, best.op, best.b.name, compliance),
				})
				continue
			}
			rules = append(rules, graph.TemporalRule{
				Dataset:       t.ds.Name,
				ColumnA:       best.a.name,
				ColumnB:       best.b.name,
				Operator:      best.op,
				Compliance:    compliance,
				Violations:    paired - best.compliant,
				Paired:        paired,
				NameSupported: best.op != graph.OpEqual && hasToken(best.a.name, earlyTokens...) && hasToken(best.b.name, lateTokens...),
			})
		}
	}

	if len(dates) > 1 {
		m.logger.Debug("Temporal pairs evaluated",
			zap.String("dataset", t.ds.Name),
			zap.Int("date_columns", len(dates)),
			zap.Int("rules", len(rules)))
	}
	return rules, notes
}

// compareColumns 统计两列同时非空的行中 a<b、a=b、a>b 的行数
func compareColumns(a, b *column) (lt, eq, gt int) {
	for r := range a.values {
		va, vb := a.values[r], b.values[r]
		if va.IsNull() || vb.IsNull() || va.Kind != vb.Kind {
			continue
		}
		switch va.Compare(vb) {
		case -1:
			lt++
		case 0:
			eq++
		default:
			gt++
		}
	}
	return lt, eq, gt
}
