package graph

// RelationshipKind 外键关系类型
type RelationshipKind string

const (
	RelationshipExplicit RelationshipKind = "explicit" // 命名 + 类型 + 值包含
	RelationshipImplicit RelationshipKind = "implicit" // 仅值包含
)

const (
	Cardinality1To1 = "1:1"
	CardinalityNTo1 = "N:1"
)

// ForeignKeyRelationship 外键关系，方向总是 source -> target
type ForeignKeyRelationship struct {
	ID            string           `json:"id"`
	SourceDataset string           `json:"source_dataset"`
	SourceColumns []string         `json:"source_columns"`
	TargetDataset string           `json:"target_dataset"`
	TargetColumns []string         `json:"target_columns"`
	Kind          RelationshipKind `json:"kind"`
	Containment   float64          `json:"containment"`
	Confidence    float64          `json:"confidence"` // 置信度 0-1
	NameScore     float64          `json:"name_score,omitempty"`
	Cardinality   string           `json:"cardinality"`
	Declared      bool             `json:"declared,omitempty"`
	Evidence      []Evidence       `json:"evidence"`
}

// Evidence 证据
type Evidence struct {
	Type        string  `json:"type"`  // naming/value_containment/type_match/declared
	Score       float64 `json:"score"` // 0-1
	Description string  `json:"description"`
	Details     string  `json:"details"`
}

// KeyCandidate 主键候选
type KeyCandidate struct {
	ID         string   `json:"id"`
	Dataset    string   `json:"dataset"`
	Columns    []string `json:"columns"`
	Uniqueness float64  `json:"uniqueness"`
	NullFree   bool     `json:"null_free"`
	Primary    bool     `json:"primary"`
	Tie        bool     `json:"tie,omitempty"`
	Truncated  bool     `json:"truncated,omitempty"`
	Declared   bool     `json:"declared,omitempty"`
	// Partial 搜索被截断时给出的未达唯一性阈值的最优组合，不能作为外键目标
	Partial bool `json:"partial,omitempty"`
}

// Composite 是否组合键
func (k KeyCandidate) Composite() bool { return len(k.Columns) > 1 }

// SearchStats 组合搜索的预算使用情况
type SearchStats struct {
	Dataset   string `json:"dataset"`
	Stage     string `json:"stage"`
	Evaluated int    `json:"evaluated"`
	Budget    int    `json:"budget"`
	MaxSize   int    `json:"max_size"`
	Truncated bool   `json:"truncated"`
}
