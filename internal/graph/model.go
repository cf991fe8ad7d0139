package graph

import (
	"encoding/json"
)

// StructuralModel 一次分析运行的全部结构化结论，构建后只读
type StructuralModel struct {
	Datasets          []DatasetSummary         `json:"datasets"`
	Profiles          []ColumnProfile          `json:"profiles"`
	Keys              []KeyCandidate           `json:"keys"`
	Searches          []SearchStats            `json:"searches"`
	Relationships     []ForeignKeyRelationship `json:"relationships"`
	TemporalRules     []TemporalRule           `json:"temporal_rules"`
	MultivariateRules []MultivariateRule       `json:"multivariate_rules"`
	ConditionalRules  []ConditionalRule        `json:"conditional_rules"`
	DerivedFields     []DerivedFieldCandidate  `json:"derived_fields"`
	Dimensions        []DimensionCandidate     `json:"dimensions"`
	LookupTables      []LookupTable            `json:"lookup_tables"`
	BusinessFields    []BusinessField          `json:"business_fields"`
	DeadColumns       []DeadColumn             `json:"dead_columns"`
	Workflows         []Workflow               `json:"workflows"`
	Notes             []Note                   `json:"notes"`
	Warnings          []Warning                `json:"warnings"`
}

// ToJSON 导出为 JSON
func (m *StructuralModel) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ToMap 导出为纯数据的嵌套 map/slice 结构，渲染器无需依赖内部类型
func (m *StructuralModel) ToMap() (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dataset 按名称查找数据集概要
func (m *StructuralModel) Dataset(name string) (DatasetSummary, bool) {
	for _, d := range m.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetSummary{}, false
}

// ProfilesFor 某数据集的列画像（按列顺序）
func (m *StructuralModel) ProfilesFor(ds string) []ColumnProfile {
	var out []ColumnProfile
	for _, p := range m.Profiles {
		if p.Dataset == ds {
			out = append(out, p)
		}
	}
	return out
}

// Profile 查找单列画像
func (m *StructuralModel) Profile(ds, column string) (ColumnProfile, bool) {
	for _, p := range m.Profiles {
		if p.Dataset == ds && p.Column == column {
			return p, true
		}
	}
	return ColumnProfile{}, false
}

// KeysFor 某数据集的主键候选
func (m *StructuralModel) KeysFor(ds string) []KeyCandidate {
	var out []KeyCandidate
	for _, k := range m.Keys {
		if k.Dataset == ds {
			out = append(out, k)
		}
	}
	return out
}

// PrimaryKey 某数据集的首选主键
func (m *StructuralModel) PrimaryKey(ds string) (KeyCandidate, bool) {
	for _, k := range m.Keys {
		if k.Dataset == ds && k.Primary {
			return k, true
		}
	}
	return KeyCandidate{}, false
}

// RelationshipsFrom 以该数据集为 source 的外键
func (m *StructuralModel) RelationshipsFrom(ds string) []ForeignKeyRelationship {
	var out []ForeignKeyRelationship
	for _, r := range m.Relationships {
		if r.SourceDataset == ds {
			out = append(out, r)
		}
	}
	return out
}

// WarningsFor 某数据集的警告
func (m *StructuralModel) WarningsFor(ds string) []Warning {
	var out []Warning
	for _, w := range m.Warnings {
		if w.Dataset == ds {
			out = append(out, w)
		}
	}
	return out
}
