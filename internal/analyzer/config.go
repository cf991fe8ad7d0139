package analyzer

import (
	"errors"
	"fmt"
)

// Config 推断引擎的全部阈值与上限，字段均可通过配置文件、环境变量或命令行覆盖
type Config struct {
	// Workers 并行 worker 数
	Workers int `koanf:"workers" yaml:"workers"`

	// 列画像
	SampleThreshold        int     `koanf:"sample_threshold" yaml:"sample_threshold"`                 // 行数超过该值时在样本上计算画像
	SampleSize             int     `koanf:"sample_size" yaml:"sample_size"`                           // 样本行数
	SampleSeed             uint64  `koanf:"sample_seed" yaml:"sample_seed"`                           // 样本随机种子（固定以保证可复现）
	SampleValues           int     `koanf:"sample_values" yaml:"sample_values"`                       // 画像中保留的示例值个数
	TypeAgreement          float64 `koanf:"type_agreement" yaml:"type_agreement"`                     // 主导类型所需的一致比例
	PatternAgreement       float64 `koanf:"pattern_agreement" yaml:"pattern_agreement"`               // 模式标签所需的命中比例
	CategoricalMaxDistinct int     `koanf:"categorical_max_distinct" yaml:"categorical_max_distinct"` // 文本列视为编码列的最大唯一值数
	CategoricalMaxRatio    float64 `koanf:"categorical_max_ratio" yaml:"categorical_max_ratio"`       // 文本列视为编码列的最大唯一值比例

	// 主键
	UniquenessThreshold     float64 `koanf:"uniqueness_threshold" yaml:"uniqueness_threshold"`           // 主键所需唯一比例
	CompositeMinUniqueness  float64 `koanf:"composite_min_uniqueness" yaml:"composite_min_uniqueness"`   // 组合键成员列的最低唯一比例
	MaxKeySize              int     `koanf:"max_key_size" yaml:"max_key_size"`                           // 组合键最大列数
	MaxKeyCombinations      int     `koanf:"max_key_combinations" yaml:"max_key_combinations"`           // 组合键搜索预算
	MaxCompositeMemberCount int     `koanf:"max_composite_members" yaml:"max_composite_members"`         // 参与组合搜索的最多成员列

	// 外键
	ExplicitThreshold   float64 `koanf:"explicit_threshold" yaml:"explicit_threshold"`       // 显式外键包含度阈值
	ImplicitThreshold   float64 `koanf:"implicit_threshold" yaml:"implicit_threshold"`       // 隐式外键包含度阈值（更严格）
	ImplicitPenalty     float64 `koanf:"implicit_penalty" yaml:"implicit_penalty"`           // 隐式外键置信度折扣
	ImplicitTolerance   float64 `koanf:"implicit_tolerance" yaml:"implicit_tolerance"`       // 源列唯一值数可超出目标键的比例
	ImplicitMinDistinct int     `koanf:"implicit_min_distinct" yaml:"implicit_min_distinct"` // 隐式外键源列最少唯一值
	NameSimilarity      float64 `koanf:"name_similarity" yaml:"name_similarity"`             // 列名编辑距离相似度阈值

	// 规则
	TemporalThreshold         float64 `koanf:"temporal_threshold" yaml:"temporal_threshold"`                   // 时间规则遵从比例
	TemporalMinPairs          int     `koanf:"temporal_min_pairs" yaml:"temporal_min_pairs"`                   // 时间规则最少成对行
	MultivariateThreshold     float64 `koanf:"multivariate_threshold" yaml:"multivariate_threshold"`           // 函数依赖置信度
	MultivariateMinGroups     int     `koanf:"multivariate_min_groups" yaml:"multivariate_min_groups"`         // 函数依赖最少分组数
	MaxDeterminantSize        int     `koanf:"max_determinant_size" yaml:"max_determinant_size"`               // 决定列集合最大列数
	MaxRuleCombinations       int     `koanf:"max_rule_combinations" yaml:"max_rule_combinations"`             // 函数依赖搜索预算（决定列集合数）
	DeterminantMaxUniqueness  float64 `koanf:"determinant_max_uniqueness" yaml:"determinant_max_uniqueness"`   // 近唯一列不作为决定列
	ConditionalMaxCardinality int     `koanf:"conditional_max_cardinality" yaml:"conditional_max_cardinality"` // 条件列最大唯一值数
	ConditionalMaxViolation   float64 `koanf:"conditional_max_violation" yaml:"conditional_max_violation"`     // 条件规则允许的违反比例
	MinRuleSupport            int     `koanf:"min_rule_support" yaml:"min_rule_support"`                       // 条件规则最少支持行

	// 派生字段
	DerivedThreshold     float64 `koanf:"derived_threshold" yaml:"derived_threshold"`           // 派生字段匹配比例
	DerivedMinRows       int     `koanf:"derived_min_rows" yaml:"derived_min_rows"`             // 操作数全非空的最少行数
	DerivedMaxOperands   int     `koanf:"derived_max_operands" yaml:"derived_max_operands"`     // 求和操作数上限
	DerivedTolerance     float64 `koanf:"derived_tolerance" yaml:"derived_tolerance"`           // 数值相等的相对误差
	DerivedMaxHypotheses int     `koanf:"derived_max_hypotheses" yaml:"derived_max_hypotheses"` // 每个目标列最多检验的假设数

	// 维度、码表、业务字段
	DimensionThreshold   float64 `koanf:"dimension_threshold" yaml:"dimension_threshold"`       // 维度综合得分阈值
	DimensionWeight      float64 `koanf:"dimension_weight" yaml:"dimension_weight"`             // 低基数得分权重（复用得分权重为 1-该值）
	DimensionSaturation  int     `koanf:"dimension_saturation" yaml:"dimension_saturation"`     // 复用得分饱和的引用数
	DimensionMinRows     int     `koanf:"dimension_min_rows" yaml:"dimension_min_rows"`         // 维度判定最少非空行
	LookupMaxRows        int     `koanf:"lookup_max_rows" yaml:"lookup_max_rows"`               // 码表最大行数
	LookupMaxColumns     int     `koanf:"lookup_max_columns" yaml:"lookup_max_columns"`         // 码表最大列数
	LookupMinConfidence  float64 `koanf:"lookup_min_confidence" yaml:"lookup_min_confidence"`   // 码表置信度阈值
	BusinessThreshold    float64 `koanf:"business_threshold" yaml:"business_threshold"`         // 业务字段得分阈值
	BusinessMaxUnique    float64 `koanf:"business_max_unique" yaml:"business_max_unique"`       // 闭合取值域的唯一比例上限
	BusinessMaxNull      float64 `koanf:"business_max_null" yaml:"business_max_null"`           // 闭合取值域的空值比例上限
	WorkflowMaxStates    int     `koanf:"workflow_max_states" yaml:"workflow_max_states"`       // 状态列最多状态数
	WorkflowMinStates    int     `koanf:"workflow_min_states" yaml:"workflow_min_states"`       // 状态列最少状态数
}

// DefaultConfig 默认阈值，均为可调参数而非精确常量
func DefaultConfig() Config {
	return Config{
		Workers: 4,

		SampleThreshold:        100000,
		SampleSize:             50000,
		SampleSeed:             42,
		SampleValues:           5,
		TypeAgreement:          0.95,
		PatternAgreement:       0.95,
		CategoricalMaxDistinct: 20,
		CategoricalMaxRatio:    0.5,

		UniquenessThreshold:     1.0,
		CompositeMinUniqueness:  0.01,
		MaxKeySize:              3,
		MaxKeyCombinations:      500,
		MaxCompositeMemberCount: 12,

		ExplicitThreshold:   0.95,
		ImplicitThreshold:   0.99,
		ImplicitPenalty:     0.8,
		ImplicitTolerance:   0.1,
		ImplicitMinDistinct: 1,
		NameSimilarity:      0.85,

		TemporalThreshold:         0.95,
		TemporalMinPairs:          20,
		MultivariateThreshold:     0.95,
		MultivariateMinGroups:     5,
		MaxDeterminantSize:        2,
		MaxRuleCombinations:       500,
		DeterminantMaxUniqueness:  0.9,
		ConditionalMaxCardinality: 10,
		ConditionalMaxViolation:   0.05,
		MinRuleSupport:            10,

		DerivedThreshold:     0.95,
		DerivedMinRows:       10,
		DerivedMaxOperands:   2,
		DerivedTolerance:     1e-6,
		DerivedMaxHypotheses: 2000,

		DimensionThreshold:  0.6,
		DimensionWeight:     0.6,
		DimensionSaturation: 2,
		DimensionMinRows:    10,
		LookupMaxRows:       1000,
		LookupMaxColumns:    5,
		LookupMinConfidence: 0.6,
		BusinessThreshold:   0.5,
		BusinessMaxUnique:   0.1,
		BusinessMaxNull:     0.1,
		WorkflowMaxStates:   20,
		WorkflowMinStates:   2,
	}
}

// ErrInvalidConfig 配置不合法
var ErrInvalidConfig = errors.New("invalid analyzer config")

// Validate 检查阈值范围：比例在 [0,1]，上限至少为 1
func (c Config) Validate() error {
	ratios := []struct {
		name string
		v    float64
	}{
		{"type_agreement", c.TypeAgreement},
		{"pattern_agreement", c.PatternAgreement},
		{"categorical_max_ratio", c.CategoricalMaxRatio},
		{"uniqueness_threshold", c.UniquenessThreshold},
		{"composite_min_uniqueness", c.CompositeMinUniqueness},
		{"explicit_threshold", c.ExplicitThreshold},
		{"implicit_threshold", c.ImplicitThreshold},
		{"implicit_penalty", c.ImplicitPenalty},
		{"implicit_tolerance", c.ImplicitTolerance},
		{"name_similarity", c.NameSimilarity},
		{"temporal_threshold", c.TemporalThreshold},
		{"multivariate_threshold", c.MultivariateThreshold},
		{"determinant_max_uniqueness", c.DeterminantMaxUniqueness},
		{"conditional_max_violation", c.ConditionalMaxViolation},
		{"derived_threshold", c.DerivedThreshold},
		{"derived_tolerance", c.DerivedTolerance},
		{"dimension_threshold", c.DimensionThreshold},
		{"dimension_weight", c.DimensionWeight},
		{"lookup_min_confidence", c.LookupMinConfidence},
		{"business_threshold", c.BusinessThreshold},
		{"business_max_unique", c.BusinessMaxUnique},
		{"business_max_null", c.BusinessMaxNull},
	}
	for _, r := range ratios {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("%w: %s=%v must be within [0,1]", ErrInvalidConfig, r.name, r.v)
		}
	}

	caps := []struct {
		name string
		v    int
	}{
		{"workers", c.Workers},
		{"sample_size", c.SampleSize},
		{"max_key_size", c.MaxKeySize},
		{"max_key_combinations", c.MaxKeyCombinations},
		{"max_composite_members", c.MaxCompositeMemberCount},
		{"implicit_min_distinct", c.ImplicitMinDistinct},
		{"temporal_min_pairs", c.TemporalMinPairs},
		{"multivariate_min_groups", c.MultivariateMinGroups},
		{"max_determinant_size", c.MaxDeterminantSize},
		{"max_rule_combinations", c.MaxRuleCombinations},
		{"conditional_max_cardinality", c.ConditionalMaxCardinality},
		{"min_rule_support", c.MinRuleSupport},
		{"derived_min_rows", c.DerivedMinRows},
		{"derived_max_operands", c.DerivedMaxOperands},
		{"derived_max_hypotheses", c.DerivedMaxHypotheses},
		{"dimension_saturation", c.DimensionSaturation},
		{"dimension_min_rows", c.DimensionMinRows},
		{"lookup_max_rows", c.LookupMaxRows},
		{"lookup_max_columns", c.LookupMaxColumns},
		{"workflow_max_states", c.WorkflowMaxStates},
		{"workflow_min_states", c.WorkflowMinStates},
	}
	for _, k := range caps {
		if k.v < 1 {
			return fmt.Errorf("%w: %s=%d must be at least 1", ErrInvalidConfig, k.name, k.v)
		}
	}
	if c.SampleThreshold < 0 {
		return fmt.Errorf("%w: sample_threshold must not be negative", ErrInvalidConfig)
	}
	if c.DerivedMaxOperands > 4 {
		return fmt.Errorf("%w: derived_max_operands=%d exceeds 4", ErrInvalidConfig, c.DerivedMaxOperands)
	}
	return nil
}
