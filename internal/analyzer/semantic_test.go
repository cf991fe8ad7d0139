package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

func TestDeadColumns(t *testing.T) {
	comment := make([]string, 20)
	for i := range comment {
		if i%4 != 0 {
			comment[i] = fmt.Sprintf("note %d", i)
		}
	}
	ds := newDataset(t, "accounts",
		[]string{"account_id", "status", "legacy", "comment"},
		nums(20, func(i int) float64 { return float64(i + 1) }),
		col(20, func(int) dataset.Value { return dataset.Text("ACTIVE") }),
		col(20, func(int) dataset.Value { return dataset.Null() }),
		texts(comment...),
	)
	cfg := DefaultConfig()
	cls := NewSemanticClassifier(cfg, nil).classify([]*table{buildTable(cfg, ds)}, findings{})

	reasons := make(map[string]graph.DeadReason)
	for _, d := range cls.dead {
		reasons[d.Column] = d.Reason
	}
	assert.Equal(t, map[string]graph.DeadReason{
		"status":  graph.DeadConstant,
		"legacy":  graph.DeadAllNull,
		"comment": graph.DeadNeverReference,
	}, reasons)
}

func TestDeadColumnsSkipEmptyDataset(t *testing.T) {
	ds := newDataset(t, "empty", []string{"a"}, []dataset.Value{})
	cfg := DefaultConfig()
	cls := NewSemanticClassifier(cfg, nil).classify([]*table{buildTable(cfg, ds)}, findings{})
	assert.Empty(t, cls.dead)
	assert.Empty(t, cls.business)
}

func TestBusinessField(t *testing.T) {
	ds := newDataset(t, "orders",
		[]string{"order_id", "order_status"},
		nums(40, func(i int) float64 { return float64(i + 1) }),
		col(40, func(i int) dataset.Value { return dataset.Text([]string{"open", "closed"}[i%2]) }),
	)
	cfg := DefaultConfig()
	cls := NewSemanticClassifier(cfg, nil).classify([]*table{buildTable(cfg, ds)}, findings{})

	require.Len(t, cls.business, 1)
	b := cls.business[0]
	assert.Equal(t, "order_status", b.Column)
	assert.InDelta(t, 0.6, b.Score, 1e-9)
	assert.Equal(t, []string{"closed", "open"}, b.Domain)
	assert.NotEmpty(t, b.Reasons)
}

func TestDimensionFromReuse(t *testing.T) {
	regions := newDataset(t, "regions",
		[]string{"region_id", "region_name"},
		nums(4, func(i int) float64 { return float64(i + 1) }),
		texts("North", "South", "East", "West"),
	)
	sales := newDataset(t, "sales",
		[]string{"sale_id", "region_id"},
		nums(40, func(i int) float64 { return float64(100 + i) }),
		nums(40, func(i int) float64 { return float64(i%4 + 1) }),
	)
	cfg := DefaultConfig()
	cfg.LookupMaxRows = 10
	tables := []*table{buildTable(cfg, regions), buildTable(cfg, sales)}
	rels := []graph.ForeignKeyRelationship{{
		SourceDataset: "sales", SourceColumns: []string{"region_id"},
		TargetDataset: "regions", TargetColumns: []string{"region_id"},
		Kind: graph.RelationshipExplicit, Containment: 1, Confidence: 1,
	}}
	lookups := NewLookupDetector(cfg, nil).detect(tables, rels)
	require.Len(t, lookups, 1)
	assert.Equal(t, "regions", lookups[0].Dataset)
	assert.Equal(t, "region_id", lookups[0].KeyColumn)
	assert.Equal(t, "region_name", lookups[0].LabelColumn)
	assert.Equal(t, []string{"sales.region_id"}, lookups[0].ReferencedBy)
	assert.InDelta(t, 1.0, lookups[0].Confidence, 1e-9)

	cls := NewSemanticClassifier(cfg, nil).classify(tables, findings{relationships: rels, lookups: lookups})
	require.Len(t, cls.dimensions, 1)
	d := cls.dimensions[0]
	assert.Equal(t, "sales", d.Dataset)
	assert.Equal(t, "region_id", d.Column)
	assert.Equal(t, 0.9, d.CardinalityScore)
	assert.Equal(t, 1.0, d.ReuseScore)
	assert.Equal(t, 0.94, d.Score)
}

func TestLookupRequiresLabel(t *testing.T) {
	payments := newDataset(t, "payments",
		[]string{"payment_id", "amount", "paid_on", "account_id"},
		nums(600, func(i int) float64 { return float64(i + 1) }),
		nums(600, func(i int) float64 { return float64(i%97) + 0.25 }),
		days(600, func(i int) int { return i % 365 }),
		nums(600, func(i int) float64 { return float64(i%50 + 1) }),
	)
	cfg := DefaultConfig()
	tb := buildTable(cfg, payments)
	require.NotNil(t, tb.primaryKey())

	assert.Empty(t, NewLookupDetector(cfg, nil).detect([]*table{tb}, nil))
}

func TestWorkflow(t *testing.T) {
	type event struct {
		ticket float64
		status string
		day    int
	}
	// 故意打乱顺序
	events := []event{
		{1, "closed", 3}, {2, "open", 1}, {1, "open", 1}, {3, "in_progress", 2},
		{2, "closed", 5}, {1, "in_progress", 2}, {3, "open", 1}, {3, "closed", 4},
	}
	ds := newDataset(t, "ticket_events",
		[]string{"event_id", "ticket_id", "status", "updated_at"},
		nums(len(events), func(i int) float64 { return float64(i + 1) }),
		nums(len(events), func(i int) float64 { return events[i].ticket }),
		col(len(events), func(i int) dataset.Value { return dataset.Text(events[i].status) }),
		days(len(events), func(i int) int { return events[i].day }),
	)
	cfg := DefaultConfig()
	wf := NewWorkflowDetector(cfg, nil).detect(buildTable(cfg, ds), nil)

	require.NotNil(t, wf)
	assert.Equal(t, "status", wf.StatusColumn)
	assert.Equal(t, "ticket_id", wf.EntityColumn)
	assert.Equal(t, "updated_at", wf.OrderColumn)
	assert.Equal(t, []string{"closed", "in_progress", "open"}, wf.States)
	assert.Equal(t, []graph.Transition{
		{From: "in_progress", To: "closed", Count: 2},
		{From: "open", To: "closed", Count: 1},
		{From: "open", To: "in_progress", Count: 2},
	}, wf.Transitions)
}
