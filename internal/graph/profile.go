package graph

import "dataset-analyzer/internal/dataset"

// LogicalType 推断出的列逻辑类型
type LogicalType string

const (
	TypeInteger     LogicalType = "integer"
	TypeDecimal     LogicalType = "decimal"
	TypeText        LogicalType = "text"
	TypeDate        LogicalType = "date"
	TypeBoolean     LogicalType = "boolean"
	TypeCategorical LogicalType = "categorical-code"
	TypeMixed       LogicalType = "mixed/text"
	TypeEmpty       LogicalType = "empty"
)

// IsNumeric 是否数值类型
func (t LogicalType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal
}

// IsTextual 是否文本类（含编码、混合）
func (t LogicalType) IsTextual() bool {
	return t == TypeText || t == TypeCategorical || t == TypeMixed
}

// CompatibleWith 判断两列类型能否互相引用
func (t LogicalType) CompatibleWith(o LogicalType) bool {
	switch {
	case t == TypeEmpty || o == TypeEmpty:
		return false
	case t == o:
		return true
	case t.IsNumeric() && o.IsNumeric():
		return true
	case t.IsTextual() && o.IsTextual():
		return true
	}
	return false
}

// PatternTag 值模式标签
type PatternTag string

const (
	PatternNone       PatternTag = ""
	PatternUUID       PatternTag = "uuid"
	PatternEmail      PatternTag = "email-like"
	PatternURL        PatternTag = "url"
	PatternCurrency   PatternTag = "iso-currency"
	PatternSequential PatternTag = "sequential-integer"
	PatternPhone      PatternTag = "phone-like"
	PatternCode       PatternTag = "code-like"
)

// CardinalityClass 取值分布形态
type CardinalityClass string

const (
	CardinalityUnique     CardinalityClass = "unique"
	CardinalityNearUnique CardinalityClass = "near_unique"
	CardinalityEnumLike   CardinalityClass = "enum_like"
	CardinalityLow        CardinalityClass = "low_cardinality"
	CardinalityHigh       CardinalityClass = "high_cardinality"
	CardinalityNone       CardinalityClass = "none"
)

// DatasetSummary 数据集概要
type DatasetSummary struct {
	Name     string   `json:"name"`
	Source   string   `json:"source,omitempty"`
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

// ColumnProfile 列统计画像
type ColumnProfile struct {
	ID            string           `json:"id"`
	Dataset       string           `json:"dataset"`
	Column        string           `json:"column"`
	Count         int              `json:"count"`
	RowCount      int              `json:"row_count"`
	NullCount     int              `json:"null_count"`
	DistinctCount int              `json:"distinct_count"`
	Type          LogicalType      `json:"type"`
	Min           dataset.Value    `json:"min"`
	Max           dataset.Value    `json:"max"`
	Samples       []string         `json:"samples"`
	Pattern       PatternTag       `json:"pattern,omitempty"`
	Category      string           `json:"category"`
	Cardinality   CardinalityClass `json:"cardinality"`
	Entropy       float64          `json:"entropy"`
	LeadingZeros  bool             `json:"leading_zeros,omitempty"`
	Sampled       bool             `json:"sampled"`
	SampleSize    int              `json:"sample_size"`
}

// NonNull 非空值数量（基于 Count）
func (p ColumnProfile) NonNull() int { return p.Count - p.NullCount }

// NullRatio 空值比例
func (p ColumnProfile) NullRatio() float64 {
	if p.Count == 0 {
		return 0
	}
	return float64(p.NullCount) / float64(p.Count)
}

// DistinctRatio 唯一值比例（相对非空值）
func (p ColumnProfile) DistinctRatio() float64 {
	if p.NonNull() == 0 {
		return 0
	}
	return float64(p.DistinctCount) / float64(p.NonNull())
}
