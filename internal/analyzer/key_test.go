package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

func TestSingleColumnKey(t *testing.T) {
	ds := newDataset(t, "products",
		[]string{"label", "product_id", "price"},
		texts("a", "b", "c", "d"),
		nums(4, func(i int) float64 { return float64(i + 1) }),
		nums(4, func(i int) float64 { return 9.5 }),
	)
	tb := buildTable(DefaultConfig(), ds)

	require.Len(t, tb.keys, 2)
	assert.Equal(t, []string{"product_id"}, tb.keys[0].Columns, "identifier-like name wins the tie")
	assert.True(t, tb.keys[0].Primary)
	assert.False(t, tb.keys[1].Primary)
	assert.Nil(t, tb.search)
}

func TestSingleColumnKeyRejectsNulls(t *testing.T) {
	ds := newDataset(t, "products",
		[]string{"product_id"},
		texts("a", "b", "", "d"),
	)
	tb := buildTable(DefaultConfig(), ds)

	assert.Empty(t, tb.keys)
	require.Len(t, tb.notes, 1)
	assert.Equal(t, graph.NoteThresholdNotMet, tb.notes[0].Reason)
}

func TestCompositeKey(t *testing.T) {
	ds := newDataset(t, "enrollments",
		[]string{"student", "course", "grade"},
		texts("s1", "s1", "s2", "s2"),
		texts("math", "art", "math", "art"),
		texts("A", "A", "A", "B"),
	)
	tb := buildTable(DefaultConfig(), ds)

	require.Len(t, tb.keys, 1)
	key := tb.keys[0]
	assert.Equal(t, []string{"student", "course"}, key.Columns)
	assert.Equal(t, 1.0, key.Uniqueness)
	assert.True(t, key.Primary)
	assert.False(t, key.Tie)
	require.NotNil(t, tb.search)
	assert.False(t, tb.search.Truncated)
	assert.Equal(t, 3, tb.search.Evaluated)
}

func TestCompositeKeyTie(t *testing.T) {
	ds := newDataset(t, "schedule",
		[]string{"slot", "room", "room_code"},
		texts("1", "1", "2", "2"),
		texts("x", "y", "x", "y"),
		texts("p", "q", "p", "q"),
	)
	tb := buildTable(DefaultConfig(), ds)

	require.Len(t, tb.keys, 2)
	for _, k := range tb.keys {
		assert.True(t, k.Tie)
		assert.Contains(t, k.Columns, "slot")
	}
	assert.True(t, tb.keys[0].Primary)
	assert.False(t, tb.keys[1].Primary)
}

func threeWayKey(t *testing.T) *dataset.Dataset {
	return newDataset(t, "readings",
		[]string{"site", "sensor", "shift"},
		texts("a", "a", "a", "a", "b", "b", "b", "b"),
		texts("x", "x", "y", "y", "x", "x", "y", "y"),
		texts("p", "q", "p", "q", "p", "q", "p", "q"),
	)
}

func TestCompositeKeyTruncatedBySize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxKeySize = 2
	tb := buildTable(cfg, threeWayKey(t))

	require.Len(t, tb.keys, 1)
	key := tb.keys[0]
	assert.True(t, key.Truncated)
	assert.False(t, key.Primary, "best-so-far below threshold is never primary")
	assert.True(t, key.Partial)
	assert.Equal(t, 0.5, key.Uniqueness)
	assert.True(t, tb.search.Truncated)
	assert.Empty(t, tb.qualifiedKeys(cfg.UniquenessThreshold), "a partial key is not a reference target")
}

func TestCompositeKeyWithinBudget(t *testing.T) {
	tb := buildTable(DefaultConfig(), threeWayKey(t))

	require.Len(t, tb.keys, 1)
	assert.Equal(t, []string{"site", "sensor", "shift"}, tb.keys[0].Columns)
	assert.True(t, tb.keys[0].Primary)
	assert.Equal(t, 4, tb.search.Evaluated)
}

func TestCompositeKeyBudgetExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxKeyCombinations = 2
	tb := buildTable(cfg, threeWayKey(t))

	assert.True(t, tb.search.Truncated)
	assert.Equal(t, 2, tb.search.Evaluated)
	for _, k := range tb.keys {
		assert.True(t, k.Truncated)
	}
}

func TestDeclaredKeyBecomesPrimary(t *testing.T) {
	ds := newDataset(t, "products",
		[]string{"product_id", "sku_code"},
		nums(4, func(i int) float64 { return float64(i + 1) }),
		texts("A1", "A2", "A3", "A4"),
	)
	ds.DeclaredKey = []string{"sku_code"}
	tb := buildTable(DefaultConfig(), ds)

	pk := tb.primaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"sku_code"}, pk.Columns)
	assert.True(t, pk.Declared)
	assert.Len(t, tb.keys, 2)
}

func TestKeysOnEmptyDataset(t *testing.T) {
	ds := newDataset(t, "empty", []string{"id"}, []dataset.Value{})
	tb := buildTable(DefaultConfig(), ds)

	assert.Empty(t, tb.keys)
	require.Len(t, tb.notes, 1)
	assert.Equal(t, graph.NoteInsufficientData, tb.notes[0].Reason)
}
