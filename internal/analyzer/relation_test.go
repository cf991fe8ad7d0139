package analyzer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

func TestCalculateNameSimilarity(t *testing.T) {
	tests := []struct {
		name1    string
		name2    string
		expected float64
	}{
		{"cDepCode", "cDepCode", 1.0},
		{"cDepCode", "DepCode", 1.0},
		{"UserID", "UserId", 1.0},
		{"customer_id", "CustomerID", 1.0},
		{"DepartmentID", "DepID", 0.8},
		{"custmer_id", "customer_id", 0.875},
		{"amount", "zip", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name1+"_"+tt.name2, func(t *testing.T) {
			assert.InDelta(t, tt.expected, nameSimilarity(tt.name1, tt.name2), 1e-9)
		})
	}
}

func TestIsTypeCompatible(t *testing.T) {
	tests := []struct {
		type1    graph.LogicalType
		type2    graph.LogicalType
		expected bool
	}{
		{graph.TypeInteger, graph.TypeInteger, true},
		{graph.TypeInteger, graph.TypeDecimal, true},
		{graph.TypeText, graph.TypeCategorical, true},
		{graph.TypeMixed, graph.TypeText, true},
		{graph.TypeText, graph.TypeInteger, false},
		{graph.TypeDate, graph.TypeText, false},
		{graph.TypeEmpty, graph.TypeEmpty, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.type1)+"_"+string(tt.type2), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.type1.CompatibleWith(tt.type2))
		})
	}
}

func TestNameMatch(t *testing.T) {
	score, _ := nameMatch("customer_id", "customer_id", "customers", 0.85)
	assert.Equal(t, 1.0, score)

	score, reason := nameMatch("customer_id", "id", "customers", 0.85)
	assert.Equal(t, 0.9, score)
	assert.NotEmpty(t, reason)

	score, _ = nameMatch("buyer", "id", "customers", 0.85)
	assert.Zero(t, score)
}

func TestContainment(t *testing.T) {
	set := func(values ...string) map[string]struct{} {
		out := make(map[string]struct{})
		for _, v := range values {
			out[v] = struct{}{}
		}
		return out
	}
	assert.Equal(t, 1.0, containment(set("1", "2"), set("1", "2", "3")))
	assert.Equal(t, 0.5, containment(set("1", "9"), set("1", "2", "3")))
	assert.Zero(t, containment(set(), set("1")))
}

func customersAndOrders(t *testing.T, orderCustomer func(i int) float64) []*dataset.Dataset {
	customers := newDataset(t, "customers",
		[]string{"customer_id", "name"},
		nums(10, func(i int) float64 { return float64(i + 1) }),
		col(10, func(i int) dataset.Value { return dataset.Text(fmt.Sprintf("Customer %d", i+1)) }),
	)
	orders := newDataset(t, "orders",
		[]string{"order_id", "customer_id"},
		nums(20, func(i int) float64 { return float64(1001 + i) }),
		nums(20, orderCustomer),
	)
	return []*dataset.Dataset{customers, orders}
}

func resolveAll(t *testing.T, cfg Config, datasets ...*dataset.Dataset) resolveResult {
	t.Helper()
	var tables []*table
	for _, ds := range datasets {
		tables = append(tables, buildTable(cfg, ds))
	}
	res, err := NewRelationshipResolver(cfg, nil).resolve(context.Background(), tables)
	require.NoError(t, err)
	return res
}

func TestResolveExplicitRelationship(t *testing.T) {
	cfg := DefaultConfig()
	res := resolveAll(t, cfg, customersAndOrders(t, func(i int) float64 { return float64(i%10 + 1) })...)

	require.Len(t, res.relationships, 1)
	rel := res.relationships[0]
	assert.Equal(t, "orders", rel.SourceDataset)
	assert.Equal(t, []string{"customer_id"}, rel.SourceColumns)
	assert.Equal(t, "customers", rel.TargetDataset)
	assert.Equal(t, []string{"customer_id"}, rel.TargetColumns)
	assert.Equal(t, graph.RelationshipExplicit, rel.Kind)
	assert.Equal(t, 1.0, rel.Confidence)
	assert.Equal(t, graph.CardinalityNTo1, rel.Cardinality)
	assert.Empty(t, res.warnings)
}

func TestResolveContainmentBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	// 一半的取值在 customers 中不存在
	res := resolveAll(t, cfg, customersAndOrders(t, func(i int) float64 { return float64(i + 1) })...)

	assert.Empty(t, res.relationships)
	var found bool
	for _, n := range res.notes {
		if n.Dataset == "orders" && n.Reason == graph.NoteThresholdNotMet {
			found = true
		}
	}
	assert.True(t, found, "expected a threshold-not-met note")
}

func TestResolveImplicitRelationship(t *testing.T) {
	cfg := DefaultConfig()
	customers := newDataset(t, "customers",
		[]string{"customer_id"},
		nums(10, func(i int) float64 { return float64(i + 1) }),
	)
	sales := newDataset(t, "sales",
		[]string{"sale_id", "buyer"},
		nums(30, func(i int) float64 { return float64(500 + i) }),
		nums(30, func(i int) float64 { return float64(i%8 + 1) }),
	)
	res := resolveAll(t, cfg, customers, sales)

	require.Len(t, res.relationships, 1)
	rel := res.relationships[0]
	assert.Equal(t, graph.RelationshipImplicit, rel.Kind)
	assert.Equal(t, []string{"buyer"}, rel.SourceColumns)
	assert.Equal(t, 1.0, rel.Containment)
	assert.InDelta(t, cfg.ImplicitPenalty, rel.Confidence, 1e-9)
	assert.Less(t, rel.Confidence, rel.Containment)
}

func TestResolveDeclaredReference(t *testing.T) {
	cfg := DefaultConfig()
	datasets := customersAndOrders(t, func(i int) float64 { return float64(i%10 + 1) })
	datasets[1].DeclaredRefs = []dataset.DeclaredRef{{
		Columns: []string{"customer_id"}, TargetDataset: "customers", TargetColumns: []string{"customer_id"},
	}}
	res := resolveAll(t, cfg, datasets...)

	require.Len(t, res.relationships, 1)
	assert.True(t, res.relationships[0].Declared)
	assert.Equal(t, 1.0, res.relationships[0].Containment)
}

func TestResolveRelationshipsMeetThreshold(t *testing.T) {
	cfg := DefaultConfig()
	res := resolveAll(t, cfg, customersAndOrders(t, func(i int) float64 { return float64(i%10 + 1) })...)
	for _, rel := range res.relationships {
		assert.GreaterOrEqual(t, rel.Containment, cfg.ExplicitThreshold)
		assert.False(t, rel.SourceDataset == rel.TargetDataset && rel.SourceColumns[0] == rel.TargetColumns[0])
	}
}

func TestResolveImplicitContainedColumns(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name   string
		target *dataset.Dataset
		source *dataset.Dataset
		column string
		key    string
	}{
		{
			name: "low distinct count",
			target: newDataset(t, "grades",
				[]string{"grade_key", "label"},
				nums(3, func(i int) float64 { return float64(i + 1) }),
				texts("basic", "intermediate", "advanced"),
			),
			source: newDataset(t, "students",
				[]string{"student_id", "level"},
				nums(12, func(i int) float64 { return float64(100 + i) }),
				nums(12, func(i int) float64 { return float64(i%3 + 1) }),
			),
			column: "level",
			key:    "grade_key",
		},
		{
			name: "dates",
			target: newDataset(t, "calendar",
				[]string{"day"},
				days(30, func(i int) int { return i }),
			),
			source: newDataset(t, "events",
				[]string{"event_id", "happened"},
				nums(40, func(i int) float64 { return float64(i + 1) }),
				days(40, func(i int) int { return i % 30 }),
			),
			column: "happened",
			key:    "day",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolveAll(t, cfg, tt.target, tt.source)

			var rel *graph.ForeignKeyRelationship
			for i := range res.relationships {
				r := res.relationships[i]
				if r.SourceDataset == tt.source.Name && r.SourceColumns[0] == tt.column {
					rel = &r
				}
			}
			require.NotNil(t, rel, "%s.%s is fully contained in %s.%s", tt.source.Name, tt.column, tt.target.Name, tt.key)
			assert.Equal(t, tt.target.Name, rel.TargetDataset)
			assert.Equal(t, []string{tt.key}, rel.TargetColumns)
			assert.Equal(t, graph.RelationshipImplicit, rel.Kind)
			assert.Equal(t, 1.0, rel.Containment)
		})
	}
}
