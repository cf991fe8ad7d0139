package analyzer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

// shop customers + orders，订单总价在最后一行录错
func shop(t *testing.T) []*dataset.Dataset {
	customers := newDataset(t, "customers",
		[]string{"customer_id", "name", "country"},
		nums(25, func(i int) float64 { return float64(i + 1) }),
		col(25, func(i int) dataset.Value { return dataset.Text(fmt.Sprintf("Customer %d", i+1)) }),
		col(25, func(i int) dataset.Value { return dataset.Text([]string{"BR", "PT", "ES"}[i%3]) }),
	)

	price := func(i int) float64 { return 5.5 + float64(i%5) }
	quantity := func(i int) float64 { return float64(i%3 + 1) }
	orders := newDataset(t, "orders",
		[]string{"order_id", "customer_id", "order_date", "ship_date", "status", "price", "quantity", "total"},
		nums(50, func(i int) float64 { return float64(1001 + i) }),
		nums(50, func(i int) float64 { return float64(i%25 + 1) }),
		days(50, func(i int) int { return i }),
		days(50, func(i int) int { return i + i%4 }),
		col(50, func(int) dataset.Value { return dataset.Text("ACTIVE") }),
		nums(50, price),
		nums(50, quantity),
		nums(50, func(i int) float64 {
			if i == 49 {
				return price(i)*quantity(i) + 1
			}
			return price(i) * quantity(i)
		}),
	)
	return []*dataset.Dataset{customers, orders}
}

func TestAnalyzeShop(t *testing.T) {
	model, err := NewEngine(DefaultConfig(), nil).Analyze(context.Background(), shop(t))
	require.NoError(t, err)
	assert.Empty(t, model.Warnings)

	pk, ok := model.PrimaryKey("customers")
	require.True(t, ok)
	assert.Equal(t, []string{"customer_id"}, pk.Columns)

	pk, ok = model.PrimaryKey("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"order_id"}, pk.Columns)

	var rel *graph.ForeignKeyRelationship
	for _, r := range model.RelationshipsFrom("orders") {
		if r.SourceColumns[0] == "customer_id" {
			rel = &r
		}
	}
	require.NotNil(t, rel)
	assert.Equal(t, "customers", rel.TargetDataset)
	assert.Equal(t, []string{"customer_id"}, rel.TargetColumns)
	assert.Equal(t, graph.RelationshipExplicit, rel.Kind)
	assert.Equal(t, 1.0, rel.Confidence)
	assert.Equal(t, graph.FindingID("relationship", "orders", "customer_id", "->", "customers", "customer_id"), rel.ID)

	require.NotEmpty(t, model.TemporalRules)
	tr := model.TemporalRules[0]
	assert.Equal(t, "order_date", tr.ColumnA)
	assert.Equal(t, "ship_date", tr.ColumnB)
	assert.Equal(t, graph.OpLessOrEqual, tr.Operator)
	assert.Equal(t, 1.0, tr.Compliance)

	var derived *graph.DerivedFieldCandidate
	for _, d := range model.DerivedFields {
		if d.Dataset == "orders" && d.Target == "total" {
			derived = &d
		}
	}
	require.NotNil(t, derived)
	assert.Equal(t, graph.OpProduct, derived.Operation)
	assert.InDelta(t, 0.98, derived.MatchRatio, 1e-9)

	var dead *graph.DeadColumn
	for _, d := range model.DeadColumns {
		if d.Dataset == "orders" && d.Column == "status" {
			dead = &d
		}
	}
	require.NotNil(t, dead)
	assert.Equal(t, graph.DeadConstant, dead.Reason)

	for _, r := range model.Relationships {
		assert.GreaterOrEqual(t, r.Containment, DefaultConfig().ExplicitThreshold)
		assert.NotEmpty(t, r.ID)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	serial := DefaultConfig()
	serial.Workers = 1
	parallel := DefaultConfig()
	parallel.Workers = 8

	first, err := NewEngine(serial, nil).Analyze(context.Background(), shop(t))
	require.NoError(t, err)
	second, err := NewEngine(parallel, nil).Analyze(context.Background(), shop(t))
	require.NoError(t, err)

	a, err := first.ToJSON()
	require.NoError(t, err)
	b, err := second.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestAnalyzeNoDatasets(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), nil).Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDatasets)
}

func TestAnalyzeIsolatesInvalidDataset(t *testing.T) {
	broken := dataset.New("broken", []string{"a", "b"}, [][]dataset.Value{{dataset.Number(1)}})
	datasets := append(shop(t), broken, nil)

	model, err := NewEngine(DefaultConfig(), nil).Analyze(context.Background(), datasets)
	require.NoError(t, err)

	warnings := model.WarningsFor("broken")
	require.Len(t, warnings, 1)
	assert.Equal(t, "input", warnings[0].Stage)
	assert.ErrorContains(t, broken.Validate(), warnings[0].Message)

	_, ok := model.Dataset("broken")
	assert.False(t, ok)
	_, ok = model.PrimaryKey("orders")
	assert.True(t, ok, "other datasets are still analyzed")
	assert.Len(t, model.Warnings, 2)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(DefaultConfig(), nil).Analyze(ctx, shop(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var stages []string
	var last int
	e := NewEngine(DefaultConfig(), nil)
	e.OnProgress(func(stage string, percent int) {
		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, percent, last)
		last = percent
		stages = append(stages, stage)
	})
	_, err := e.Analyze(context.Background(), shop(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"profile", "relationships", "rules", "semantic", "aggregate", "done"}, stages)
	assert.Equal(t, 100, last)
}
