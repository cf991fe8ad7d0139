package analyzer

import (
	"sort"

	"go.uber.org/zap"

	"dataset-analyzer/internal/graph"
)

// LookupDetector 枚举/码表检测器
type LookupDetector struct {
	cfg    Config
	logger *zap.Logger
}

// NewLookupDetector 创建检测器
func NewLookupDetector(cfg Config, logger *zap.Logger) *LookupDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupDetector{cfg: cfg, logger: logger.Named("lookup")}
}

// detect 检测码表：行数少、列数少、有主键和标签列
func (e *LookupDetector) detect(tables []*table, rels []graph.ForeignKeyRelationship) []graph.LookupTable {
	var out []graph.LookupTable
	for _, t := range tables {
		rows := t.ds.RowCount()
		// 码表特征：行数少
		if rows == 0 || rows > e.cfg.LookupMaxRows || len(t.columns) > e.cfg.LookupMaxColumns {
			continue
		}

		// 没有标签列的小表不是码表
		keyCol, labelCol := e.findLookupColumns(t)
		if keyCol == "" || labelCol == "" {
			continue
		}

		var referencedBy []string
		for _, r := range rels {
			if r.TargetDataset == t.ds.Name && len(r.TargetColumns) == 1 && r.TargetColumns[0] == keyCol {
				referencedBy = append(referencedBy, r.SourceDataset+"."+r.SourceColumns[0])
			}
		}
		sort.Strings(referencedBy)

		confidence := round4(e.calculateLookupConfidence(t, keyCol, labelCol))
		if confidence <= e.cfg.LookupMinConfidence {
			continue
		}
		out = append(out, graph.LookupTable{
			Dataset:      t.ds.Name,
			KeyColumn:    keyCol,
			LabelColumn:  labelCol,
			RowCount:     rows,
			Confidence:   confidence,
			ReferencedBy: referencedBy,
		})
	}
	e.logger.Debug("Lookup tables detected", zap.Int("count", len(out)))
	return out
}

// findLookupColumns 主键列作为 key；标签列取命名像 name/label/desc 的文本列
func (e *LookupDetector) findLookupColumns(t *table) (keyCol, labelCol string) {
	labelPatterns := []string{"name", "label", "desc", "description", "value", "title", "nome", "descricao"}

	pk := t.primaryKey()
	if pk == nil || pk.Composite() {
		return "", ""
	}
	keyCol = pk.Columns[0]

	for _, c := range t.columns {
		if c.name == keyCol || !c.typ.IsTextual() {
			continue
		}
		if hasToken(c.name, labelPatterns...) {
			return keyCol, c.name
		}
	}
	// 没有命名线索时取第一个近唯一的文本列
	for _, c := range t.columns {
		if c.name != keyCol && c.typ.IsTextual() && c.uniqueness() >= 0.9 {
			return keyCol, c.name
		}
	}
	return keyCol, ""
}

// calculateLookupConfidence 计算码表置信度
func (e *LookupDetector) calculateLookupConfidence(t *table, keyCol, labelCol string) float64 {
	score := 0.0
	rows := t.ds.RowCount()

	// 行数少加分
	if rows < 100 {
		score += 0.4
	} else if rows < 500 {
		score += 0.3
	} else {
		score += 0.2
	}

	// 有 key 和 label 列加分
	if keyCol != "" && labelCol != "" {
		score += 0.4
	} else if keyCol != "" {
		score += 0.2
	}

	// 列数少加分（典型码表 2-5 列）
	if len(t.columns) <= 5 {
		score += 0.2
	}

	return score
}
