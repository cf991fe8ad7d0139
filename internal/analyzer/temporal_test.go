package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

func mineTemporal(t *testing.T, cfg Config, ds *dataset.Dataset) ([]graph.TemporalRule, []graph.Note) {
	t.Helper()
	return NewTemporalMiner(cfg, nil).mine(buildTable(cfg, ds))
}

func TestTemporalLessOrEqual(t *testing.T) {
	ds := newDataset(t, "orders",
		[]string{"order_date", "ship_date"},
		days(40, func(i int) int { return i }),
		days(40, func(i int) int { return i + i%4 }),
	)
	rules, notes := mineTemporal(t, DefaultConfig(), ds)

	require.Len(t, rules, 1)
	assert.Empty(t, notes)
	r := rules[0]
	assert.Equal(t, "order_date", r.ColumnA)
	assert.Equal(t, "ship_date", r.ColumnB)
	assert.Equal(t, graph.OpLessOrEqual, r.Operator)
	assert.Equal(t, 1.0, r.Compliance)
	assert.Equal(t, 40, r.Paired)
	assert.Zero(t, r.Violations)
	assert.True(t, r.NameSupported)
}

func TestTemporalPrefersLessOrEqualOnTies(t *testing.T) {
	ds := newDataset(t, "tickets",
		[]string{"closed_at", "opened_at"},
		days(30, func(i int) int { return i + 2 }),
		days(30, func(i int) int { return i }),
	)
	rules, _ := mineTemporal(t, DefaultConfig(), ds)

	require.Len(t, rules, 1)
	assert.Equal(t, "opened_at", rules[0].ColumnA)
	assert.Equal(t, "closed_at", rules[0].ColumnB)
	assert.Equal(t, graph.OpLessOrEqual, rules[0].Operator)
}

func TestTemporalBelowThreshold(t *testing.T) {
	ds := newDataset(t, "events",
		[]string{"start_date", "end_date"},
		days(30, func(i int) int { return 10 }),
		days(30, func(i int) int { return i % 20 }),
	)
	rules, notes := mineTemporal(t, DefaultConfig(), ds)

	assert.Empty(t, rules)
	require.Len(t, notes, 1)
	assert.Equal(t, graph.NoteThresholdNotMet, notes[0].Reason)
}

func TestTemporalInsufficientPairs(t *testing.T) {
	ds := newDataset(t, "events",
		[]string{"start_date", "end_date"},
		days(5, func(i int) int { return i }),
		days(5, func(i int) int { return i + 1 }),
	)
	rules, notes := mineTemporal(t, DefaultConfig(), ds)

	assert.Empty(t, rules)
	require.Len(t, notes, 1)
	assert.Equal(t, graph.NoteInsufficientData, notes[0].Reason)
}

func TestTemporalSkipsNullPairs(t *testing.T) {
	ship := days(30, func(i int) int { return i + 1 })
	for i := 0; i < 10; i++ {
		ship[i] = dataset.Null()
	}
	ds := newDataset(t, "orders",
		[]string{"order_date", "ship_date"},
		days(30, func(i int) int { return i }),
		ship,
	)
	rules, _ := mineTemporal(t, DefaultConfig(), ds)

	require.Len(t, rules, 1)
	assert.Equal(t, 20, rules[0].Paired)
	assert.Equal(t, 1.0, rules[0].Compliance)
}
