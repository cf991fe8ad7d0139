package graph

// TemporalOperator 时间规则运算符
type TemporalOperator string

const (
	OpLessOrEqual TemporalOperator = "<="
	OpLess        TemporalOperator = "<"
	OpEqual       TemporalOperator = "="
)

// TemporalRule 时间先后规则 a op b
type TemporalRule struct {
	ID            string           `json:"id"`
	Dataset       string           `json:"dataset"`
	ColumnA       string           `json:"column_a"`
	ColumnB       string           `json:"column_b"`
	Operator      TemporalOperator `json:"operator"`
	Compliance    float64          `json:"compliance"`
	Violations    int              `json:"violations"`
	Paired        int              `json:"paired"`
	NameSupported bool             `json:"name_supported,omitempty"`
}

// MultivariateRule 函数依赖 determinant -> dependent
type MultivariateRule struct {
	ID          string   `json:"id"`
	Dataset     string   `json:"dataset"`
	Determinant []string `json:"determinant"`
	Dependent   string   `json:"dependent"`
	Confidence  float64  `json:"confidence"`
	Groups      int      `json:"groups"`
	Truncated   bool     `json:"truncated,omitempty"`
}

// ConditionalRule 条件规则：condition = value 时 target 非空
type ConditionalRule struct {
	ID             string  `json:"id"`
	Dataset        string  `json:"dataset"`
	Condition      string  `json:"condition"`
	ConditionValue string  `json:"condition_value"`
	Target         string  `json:"target"`
	Support        int     `json:"support"`
	ViolationRatio float64 `json:"violation_ratio"`
}

// DerivedOperation 派生运算
type DerivedOperation string

const (
	OpSum            DerivedOperation = "sum"
	OpDifference     DerivedOperation = "difference"
	OpProduct        DerivedOperation = "product"
	OpRatio          DerivedOperation = "ratio"
	OpConcatenation  DerivedOperation = "concatenation"
	OpDateDifference DerivedOperation = "date_difference"
)

// DerivedFieldCandidate 派生字段
type DerivedFieldCandidate struct {
	ID         string           `json:"id"`
	Dataset    string           `json:"dataset"`
	Target     string           `json:"target"`
	Operation  DerivedOperation `json:"operation"`
	Operands   []string         `json:"operands"`
	Separator  string           `json:"separator,omitempty"`
	MatchRatio float64          `json:"match_ratio"`
	Rows       int              `json:"rows"`
	Truncated  bool             `json:"truncated,omitempty"`
}

// DimensionCandidate 维度列候选
type DimensionCandidate struct {
	ID               string   `json:"id"`
	Dataset          string   `json:"dataset"`
	Column           string   `json:"column"`
	CardinalityScore float64  `json:"cardinality_score"`
	ReuseScore       float64  `json:"reuse_score"`
	Score            float64  `json:"score"`
	ReferencedBy     []string `json:"referenced_by,omitempty"`
}

// LookupTable 码表/枚举表
type LookupTable struct {
	ID           string   `json:"id"`
	Dataset      string   `json:"dataset"`
	KeyColumn    string   `json:"key_column"`
	LabelColumn  string   `json:"label_column,omitempty"`
	RowCount     int      `json:"row_count"`
	Confidence   float64  `json:"confidence"`
	ReferencedBy []string `json:"referenced_by,omitempty"`
}

// BusinessField 业务字段
type BusinessField struct {
	ID      string   `json:"id"`
	Dataset string   `json:"dataset"`
	Column  string   `json:"column"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
	Domain  []string `json:"domain,omitempty"`
}

// DeadReason 死列原因
type DeadReason string

const (
	DeadAllNull        DeadReason = "all-null"
	DeadConstant       DeadReason = "single-constant-value"
	DeadNeverReference DeadReason = "never-referenced-as-key-or-dependency"
)

// DeadColumn 无信号列
type DeadColumn struct {
	ID      string     `json:"id"`
	Dataset string     `json:"dataset"`
	Column  string     `json:"column"`
	Reason  DeadReason `json:"reason"`
}

// Transition 状态迁移
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Workflow 状态流转
type Workflow struct {
	ID           string       `json:"id"`
	Dataset      string       `json:"dataset"`
	StatusColumn string       `json:"status_column"`
	EntityColumn string       `json:"entity_column,omitempty"`
	OrderColumn  string       `json:"order_column,omitempty"`
	States       []string     `json:"states"`
	Transitions  []Transition `json:"transitions"`
}

// NoteReason 未产出结论的原因
type NoteReason string

const (
	NoteInsufficientData NoteReason = "insufficient-data"
	NoteThresholdNotMet  NoteReason = "threshold-not-met"
)

// Note 正常的“无结论”结果
type Note struct {
	Dataset string     `json:"dataset"`
	Stage   string     `json:"stage"`
	Subject string     `json:"subject"`
	Reason  NoteReason `json:"reason"`
	Detail  string     `json:"detail,omitempty"`
}

// Warning 被隔离的失败
type Warning struct {
	Dataset string `json:"dataset,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
